package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTribeCreated_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.fanout.TribeCreated(ctx, "Climbers")
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = f.fanout.TribeCreated(ctx, "Climbers")
	require.NoError(t, err)
	assert.Zero(t, added)

	for _, u := range []uuid.UUID{f.ann, f.bob, f.cat} {
		notes, err := f.fanout.List(ctx, u)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationTribeCreate, notes[0].Type)
		assert.Equal(t, "New tribe 'Climbers' has been created.", notes[0].Text)
	}

	_, err = f.fanout.TribeCreated(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFriendRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := uuid.New()

	require.NoError(t, f.fanout.FriendRequestSent(ctx, f.bob, f.ann))
	require.NoError(t, f.fanout.FriendRequestSent(ctx, f.bob, stranger))
	require.NoError(t, f.fanout.FriendRequestAccepted(ctx, f.ann, f.bob))

	bobNotes, err := f.fanout.List(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, bobNotes, 2)
	assert.Equal(t, "You have a new friend request from ann", bobNotes[0].Text)
	assert.Equal(t, "You have a new friend request from someone", bobNotes[1].Text)

	annNotes, err := f.fanout.List(ctx, f.ann)
	require.NoError(t, err)
	require.Len(t, annNotes, 1)
	assert.Equal(t, models.NotificationAcceptRequest, annNotes[0].Type)
	assert.Equal(t, "Your friend request has been accepted by bob", annNotes[0].Text)

	assert.ErrorIs(t, f.fanout.FriendRequestSent(ctx, f.ann, f.ann), ErrValidation)
}

func TestMessageCreated_OneFailureDoesNotBlockOthers(t *testing.T) {
	dir := memory.NewDirectory()
	notes := &failingNotes{NotificationStore: memory.NewNotificationStore(), failFor: uuid.New()}
	fanout := NewFanout(notes, dir, zap.NewNop())

	sender := models.User{ID: uuid.New(), DisplayName: "ann"}
	ok := uuid.New()

	err := fanout.MessageCreated(context.Background(), []uuid.UUID{sender.ID, notes.failFor, ok}, sender)
	assert.ErrorIs(t, err, ErrPersistence)

	got, err := notes.List(context.Background(), ok)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "validation", Code(ErrValidation))
	assert.Equal(t, "invalid_sender", Code(ErrInvalidSender))
	assert.Equal(t, "not_found", Code(ErrNotFound))
	assert.Equal(t, "deletion_window_expired", Code(ErrDeletionWindowExpired))
	assert.Equal(t, "persistence", Code(ErrPersistence))
}
