package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/events"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/repository/memory"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type sent struct {
	room  string
	event events.Event
}

// recordingBus captures broadcasts instead of delivering them.
type recordingBus struct {
	mu   sync.Mutex
	sent []sent
}

func (b *recordingBus) Broadcast(_ context.Context, room string, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{room: room, event: e})
	return nil
}

func (b *recordingBus) named(name events.Name) []sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sent
	for _, s := range b.sent {
		if s.event.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type failingNotes struct {
	*memory.NotificationStore
	failFor uuid.UUID
}

func (f *failingNotes) AddToSet(ctx context.Context, userID uuid.UUID, kind, text string) (bool, error) {
	if userID == f.failFor {
		return false, errors.New("connection reset")
	}
	return f.NotificationStore.AddToSet(ctx, userID, kind, text)
}

// fixture wires the services over in-memory stores with a controllable
// clock shared by the message store and the deletion window.
type fixture struct {
	dir      *memory.Directory
	notes    *memory.NotificationStore
	messages *memory.MessageStore
	tribeMsg *memory.MessageStore
	bus      *recordingBus
	blobs    *mockBlobStore

	lobbies *LobbyService
	tribes  *TribeLobbyService
	direct  *MessageService
	tribe   *MessageService
	fanout  *Fanout

	now time.Time

	ann, bob, cat uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		dir:      memory.NewDirectory(),
		notes:    memory.NewNotificationStore(),
		messages: memory.NewMessageStore(),
		tribeMsg: memory.NewMessageStore(),
		bus:      &recordingBus{},
		blobs:    &mockBlobStore{},
		now:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ann:      uuid.New(),
		bob:      uuid.New(),
		cat:      uuid.New(),
	}
	clock := func() time.Time { return f.now }
	f.messages.Now = clock
	f.tribeMsg.Now = clock

	f.dir.PutUser(f.ann, "ann")
	f.dir.PutUser(f.bob, "bob")
	f.dir.PutUser(f.cat, "cat")

	logger := zap.NewNop()
	f.fanout = NewFanout(f.notes, f.dir, logger)
	f.lobbies = NewLobbyService(memory.NewLobbyStore(), f.dir, logger)
	f.tribes = NewTribeLobbyService(memory.NewTribeLobbyStore(), f.dir, logger)

	f.direct = NewDirectMessages(f.lobbies, Deps{
		Messages: f.messages, Users: f.dir, Bus: f.bus, Fanout: f.fanout, Logger: logger,
	}, WithClock(clock), WithBlobStore(f.blobs))
	f.tribe = NewTribeMessages(f.tribes, Deps{
		Messages: f.tribeMsg, Users: f.dir, Bus: f.bus, Fanout: f.fanout, Logger: logger,
	}, WithClock(clock), WithBlobStore(f.blobs))
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) directLobby(t *testing.T) *models.ChatLobby {
	t.Helper()
	lobby, err := f.lobbies.GetOrCreateDirect(context.Background(), f.ann, f.bob)
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	return lobby
}

func (f *fixture) send(t *testing.T, lobbyID string, from uuid.UUID, text string) *models.Message {
	t.Helper()
	msg, err := f.direct.Send(context.Background(), SendRequest{
		LobbyID:  lobbyID,
		SenderID: from.String(),
		Text:     text,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

// upload builds a file reference inside user's upload folder for lobbyID.
func upload(lobbyID string, user uuid.UUID, name string) string {
	return "chat/" + lobbyID + "/" + user.String() + "/" + name
}
