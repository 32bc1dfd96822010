package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/tribechat/internal/models"
)

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// The (user_id, type, text) primary key gives set semantics: a repeated
// pair hits the conflict and inserts nothing.
const addNotification = `
	INSERT INTO notifications (user_id, type, text, created_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (user_id, type, text) DO NOTHING`

func (s *NotificationStore) AddToSet(ctx context.Context, userID uuid.UUID, kind, text string) (bool, error) {
	tag, err := s.pool.Exec(ctx, addNotification, userID, kind, text)
	if err != nil {
		return false, fmt.Errorf("add notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddToSetMany queues one upsert per user in a single batch. A batch runs
// as one implicit transaction, so if any statement fails the whole batch is
// rolled back and every user is retried on its own. The upsert is
// idempotent, which makes the retry safe.
func (s *NotificationStore) AddToSetMany(ctx context.Context, userIDs []uuid.UUID, kind, text string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	added, err := s.addBatch(ctx, userIDs, kind, text)
	if err == nil {
		return added, nil
	}

	added = 0
	var errs []error
	for _, id := range userIDs {
		ok, err := s.AddToSet(ctx, id, kind, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if ok {
			added++
		}
	}
	return added, errors.Join(errs...)
}

func (s *NotificationStore) addBatch(ctx context.Context, userIDs []uuid.UUID, kind, text string) (int, error) {
	batch := &pgx.Batch{}
	for _, id := range userIDs {
		batch.Queue(addNotification, id, kind, text)
	}

	results := s.pool.SendBatch(ctx, batch)
	added := 0
	for range userIDs {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("batch add notification: %w", err)
		}
		added += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close notification batch: %w", err)
	}
	return added, nil
}

func (s *NotificationStore) List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	// Every statement in a batch sees the same now(), so created_at alone
	// leaves a fan-out's rows unordered. seq is the insertion order.
	query := `
		SELECT user_id, type, text, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.UserID, &n.Type, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}
