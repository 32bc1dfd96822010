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

// MessageStore serves both message tables. The table name is fixed at
// construction and never comes from user input.
type MessageStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool, table: "messages"}
}

func NewTribeMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool, table: "tribe_messages"}
}

const messageColumns = `id, lobby_id, sender_id, kind, body, file_ref, sent_at, seen, deleted_for`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(
		&m.ID,
		&m.LobbyID,
		&m.SenderID,
		&m.Kind,
		&m.Body,
		&m.FileRef,
		&m.SentAt,
		&m.Seen,
		&m.DeletedFor,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (lobby_id, sender_id, kind, body, file_ref, sent_at, seen, deleted_for)
		VALUES ($1, $2, $3, $4, $5, now(), false, '{}')
		RETURNING %s`, s.table, messageColumns)

	created, err := scanMessage(s.pool.QueryRow(ctx, query,
		msg.LobbyID, msg.SenderID, msg.Kind, msg.Body, msg.FileRef))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, messageColumns, s.table)

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListVisible(ctx context.Context, lobbyID string, viewer uuid.UUID) ([]models.Message, error) {
	// id breaks ties between messages inserted within the same
	// microsecond; bigserial follows insertion order.
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE lobby_id = $1 AND NOT ($2::uuid = ANY(deleted_for))
		ORDER BY sent_at ASC, id ASC`, messageColumns, s.table)

	rows, err := s.pool.Query(ctx, query, lobbyID, viewer)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *MessageStore) MarkSeen(ctx context.Context, messageID int64) (*models.Message, error) {
	query := fmt.Sprintf(`UPDATE %s SET seen = true WHERE id = $1 RETURNING %s`, s.table, messageColumns)

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark message seen: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Hide(ctx context.Context, messageID int64, userID uuid.UUID, participants []uuid.UUID) (*models.Message, bool, error) {
	var (
		msg    *models.Message
		purged bool
	)
	// The UPDATE takes the row lock, so two participants hiding the same
	// message at once serialize here and the second one sees both ids.
	// The CASE keeps deleted_for a set: hiding twice is a no-op instead of
	// a duplicate entry.
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		update := fmt.Sprintf(`
			UPDATE %s
			SET deleted_for = CASE
				WHEN $2::uuid = ANY(deleted_for) THEN deleted_for
				ELSE array_append(deleted_for, $2::uuid)
			END
			WHERE id = $1
			RETURNING %s`, s.table, messageColumns)

		var err error
		msg, err = scanMessage(tx.QueryRow(ctx, update, messageID, userID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				msg = nil
				return nil
			}
			return fmt.Errorf("hide message: %w", err)
		}
		// Coverage, not size: deleted_for may still carry users who have
		// left a tribe since they hid the message.
		if !msg.IsDeletedForAll(participants) {
			return nil
		}

		del := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
		if _, err := tx.Exec(ctx, del, messageID); err != nil {
			return fmt.Errorf("purge message: %w", err)
		}
		purged = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return msg, purged, nil
}

func (s *MessageStore) HideAll(ctx context.Context, lobbyID string, userID uuid.UUID, participants []uuid.UUID) ([]models.Message, error) {
	var purged []models.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Rows the user already hid are skipped so the array stays a set.
		update := fmt.Sprintf(`
			UPDATE %s
			SET deleted_for = array_append(deleted_for, $2::uuid)
			WHERE lobby_id = $1 AND NOT ($2::uuid = ANY(deleted_for))`, s.table)
		if _, err := tx.Exec(ctx, update, lobbyID, userID); err != nil {
			return fmt.Errorf("hide lobby messages: %w", err)
		}

		// @> is array containment: the row goes once deleted_for holds
		// every current participant, whatever else it holds.
		del := fmt.Sprintf(`
			DELETE FROM %s
			WHERE lobby_id = $1 AND deleted_for @> $2::uuid[]
			RETURNING %s`, s.table, messageColumns)
		rows, err := tx.Query(ctx, del, lobbyID, participants)
		if err != nil {
			return fmt.Errorf("purge lobby messages: %w", err)
		}
		purged, err = collectMessages(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return purged, nil
}

func (s *MessageStore) Delete(ctx context.Context, messageID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, query, messageID)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
