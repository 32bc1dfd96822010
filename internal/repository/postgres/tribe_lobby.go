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

type TribeLobbyStore struct {
	pool *pgxpool.Pool
}

func NewTribeLobbyStore(pool *pgxpool.Pool) *TribeLobbyStore {
	return &TribeLobbyStore{pool: pool}
}

const tribeLobbyColumns = `id, tribe_id, hidden_for, created_at`

func scanTribeLobby(row pgx.Row) (*models.TribeChatLobby, error) {
	var l models.TribeChatLobby
	if err := row.Scan(&l.ID, &l.TribeID, &l.HiddenFor, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetOrCreate uses the tribe id as the lobby id, so the room a client joins
// for tribe chat is the tribe id itself.
//
// Same convergence as LobbyStore.GetOrCreate, keyed on the primary key
// instead of the participants index. Membership is not stored here; it
// is read from tribe_members on every check, so joins and leaves need no
// lobby write.
func (s *TribeLobbyStore) GetOrCreate(ctx context.Context, tribeID uuid.UUID) (*models.TribeChatLobby, bool, error) {
	insert := `
		INSERT INTO tribe_chat_lobbies (id, tribe_id, hidden_for, created_at)
		VALUES ($1, $2, '{}', now())
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + tribeLobbyColumns

	lobby, err := scanTribeLobby(s.pool.QueryRow(ctx, insert, tribeID.String(), tribeID))
	if err == nil {
		return lobby, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert tribe lobby: %w", err)
	}

	lobby, err = s.GetByID(ctx, tribeID.String())
	if err != nil {
		return nil, false, err
	}
	if lobby == nil {
		// Only possible if the row was deleted between the two statements.
		return nil, false, fmt.Errorf("get tribe lobby: %w", pgx.ErrNoRows)
	}
	return lobby, false, nil
}

func (s *TribeLobbyStore) GetByID(ctx context.Context, lobbyID string) (*models.TribeChatLobby, error) {
	query := `SELECT ` + tribeLobbyColumns + ` FROM tribe_chat_lobbies WHERE id = $1`

	lobby, err := scanTribeLobby(s.pool.QueryRow(ctx, query, lobbyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tribe lobby: %w", err)
	}
	return lobby, nil
}

func (s *TribeLobbyStore) AddHidden(ctx context.Context, lobbyID string, userID uuid.UUID) (*models.TribeChatLobby, error) {
	query := `
		UPDATE tribe_chat_lobbies
		SET hidden_for = CASE
			WHEN $2::uuid = ANY(hidden_for) THEN hidden_for
			ELSE array_append(hidden_for, $2::uuid)
		END
		WHERE id = $1
		RETURNING ` + tribeLobbyColumns

	lobby, err := scanTribeLobby(s.pool.QueryRow(ctx, query, lobbyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("hide tribe lobby: %w", err)
	}
	return lobby, nil
}

func (s *TribeLobbyStore) ClearHidden(ctx context.Context, lobbyID string) error {
	query := `UPDATE tribe_chat_lobbies SET hidden_for = '{}' WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, lobbyID); err != nil {
		return fmt.Errorf("clear tribe lobby hidden: %w", err)
	}
	return nil
}
