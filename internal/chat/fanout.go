package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/repository"
	"go.uber.org/zap"
)

// Fanout writes durable notifications. Every write is a set insert, so
// repeating a fan-out never duplicates an entry.
type Fanout struct {
	notes  repository.NotificationStore
	users  repository.UserDirectory
	logger *zap.Logger
}

func NewFanout(notes repository.NotificationStore, users repository.UserDirectory, logger *zap.Logger) *Fanout {
	return &Fanout{notes: notes, users: users, logger: logger.Named("fanout")}
}

// MessageCreated notifies every recipient except the sender. A failed
// upsert for one user does not stop the rest; all failures are returned
// joined.
func (f *Fanout) MessageCreated(ctx context.Context, recipients []uuid.UUID, sender models.User) error {
	text := "New Message from " + sender.DisplayName

	var errs []error
	for _, userID := range recipients {
		if userID == sender.ID {
			continue
		}
		if _, err := f.notes.AddToSet(ctx, userID, models.NotificationMessage, text); err != nil {
			f.logger.Warn("message notification failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("notify %s: %w", userID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	}
	return nil
}

// TribeCreated tells every user in the system about a new tribe and
// returns how many entries were new.
func (f *Fanout) TribeCreated(ctx context.Context, title string) (int, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("%w: title is required", ErrValidation)
	}

	ids, err := f.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list users: %w", ErrPersistence, err)
	}

	text := fmt.Sprintf("New tribe '%s' has been created.", title)
	added, err := f.notes.AddToSetMany(ctx, ids, models.NotificationTribeCreate, text)
	if err != nil {
		f.logger.Warn("tribe notification partially failed",
			zap.String("title", title),
			zap.Int("added", added),
			zap.Error(err),
		)
		return added, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	f.logger.Debug("tribe notification sent", zap.String("title", title), zap.Int("added", added))
	return added, nil
}

func (f *Fanout) FriendRequestSent(ctx context.Context, target, requester uuid.UUID) error {
	if target == uuid.Nil {
		return fmt.Errorf("%w: target user is required", ErrValidation)
	}
	if target == requester {
		return fmt.Errorf("%w: cannot befriend yourself", ErrValidation)
	}
	name, err := f.displayName(ctx, requester)
	if err != nil {
		return err
	}
	return f.add(ctx, target, models.NotificationFriendRequest, "You have a new friend request from "+name)
}

func (f *Fanout) FriendRequestAccepted(ctx context.Context, requester, accepter uuid.UUID) error {
	if requester == uuid.Nil {
		return fmt.Errorf("%w: requester is required", ErrValidation)
	}
	if requester == accepter {
		return fmt.Errorf("%w: cannot befriend yourself", ErrValidation)
	}
	name, err := f.displayName(ctx, accepter)
	if err != nil {
		return err
	}
	return f.add(ctx, requester, models.NotificationAcceptRequest, "Your friend request has been accepted by "+name)
}

func (f *Fanout) add(ctx context.Context, userID uuid.UUID, kind, text string) error {
	if _, err := f.notes.AddToSet(ctx, userID, kind, text); err != nil {
		return fmt.Errorf("%w: add notification: %w", ErrPersistence, err)
	}
	return nil
}

// displayName falls back to "someone" for users the directory does not know.
func (f *Fanout) displayName(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := f.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: look up user: %w", ErrPersistence, err)
	}
	if u == nil || strings.TrimSpace(u.DisplayName) == "" {
		return "someone", nil
	}
	return u.DisplayName, nil
}

// List returns userID's notifications, oldest first.
func (f *Fanout) List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	notes, err := f.notes.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %w", ErrPersistence, err)
	}
	return notes, nil
}
