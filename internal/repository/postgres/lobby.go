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

// LobbyStore persists direct and group lobbies in chat_lobbies.
//
// Participants and hidden_for are uuid[] columns used as sets. Postgres
// has no set type, so the queries below keep the set discipline
// themselves: participants is written once in canonical (sorted, distinct)
// order, and hidden_for is only ever appended to when the id is absent.
type LobbyStore struct {
	pool *pgxpool.Pool
}

func NewLobbyStore(pool *pgxpool.Pool) *LobbyStore {
	return &LobbyStore{pool: pool}
}

const lobbyColumns = `id, participants, hidden_for, created_at`

func scanLobby(row pgx.Row) (*models.ChatLobby, error) {
	var l models.ChatLobby
	if err := row.Scan(&l.ID, &l.Participants, &l.HiddenFor, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *LobbyStore) GetOrCreate(ctx context.Context, participants []uuid.UUID) (*models.ChatLobby, bool, error) {
	// The unique index on participants makes concurrent first contacts
	// converge: the loser's insert does nothing and the select below
	// finds the winner's row.
	//
	// DO NOTHING rather than DO UPDATE: an update would take a row lock
	// and bump nothing useful, and RETURNING yields no row on conflict,
	// which is how we tell "created" from "found".
	//
	// Array equality is element-wise and ordered, so this only works
	// because callers pass models.CanonicalParticipants.
	insert := `
		INSERT INTO chat_lobbies (id, participants, hidden_for, created_at)
		VALUES ($1, $2, '{}', now())
		ON CONFLICT (participants) DO NOTHING
		RETURNING ` + lobbyColumns

	lobby, err := scanLobby(s.pool.QueryRow(ctx, insert, uuid.NewString(), participants))
	if err == nil {
		return lobby, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert lobby: %w", err)
	}

	// The conflicting row was committed before our insert returned, so it
	// is visible here even under READ COMMITTED.
	query := `SELECT ` + lobbyColumns + ` FROM chat_lobbies WHERE participants = $1`
	lobby, err = scanLobby(s.pool.QueryRow(ctx, query, participants))
	if err != nil {
		return nil, false, fmt.Errorf("get lobby by participants: %w", err)
	}
	return lobby, false, nil
}

func (s *LobbyStore) GetByID(ctx context.Context, lobbyID string) (*models.ChatLobby, error) {
	query := `SELECT ` + lobbyColumns + ` FROM chat_lobbies WHERE id = $1`

	lobby, err := scanLobby(s.pool.QueryRow(ctx, query, lobbyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	return lobby, nil
}

func (s *LobbyStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatLobby, error) {
	// @> (contains) can use a GIN index on participants; "= ANY" cannot.
	// The hidden_for check stays a plain filter since it only narrows
	// the already small candidate set.
	query := `
		SELECT ` + lobbyColumns + `
		FROM chat_lobbies
		WHERE participants @> ARRAY[$1::uuid]
		  AND NOT ($1::uuid = ANY(hidden_for))
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	defer rows.Close()

	lobbies := make([]models.ChatLobby, 0)
	for rows.Next() {
		lobby, err := scanLobby(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lobby: %w", err)
		}
		lobbies = append(lobbies, *lobby)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lobbies: %w", err)
	}
	return lobbies, nil
}

func (s *LobbyStore) AddHidden(ctx context.Context, lobbyID string, userID uuid.UUID) (*models.ChatLobby, error) {
	// array_append happily adds duplicates; the CASE turns a repeat hide
	// into a no-op so hidden_for stays a set. Evaluated under the row lock
	// the UPDATE takes, so two concurrent hides cannot both append.
	query := `
		UPDATE chat_lobbies
		SET hidden_for = CASE
			WHEN $2::uuid = ANY(hidden_for) THEN hidden_for
			ELSE array_append(hidden_for, $2::uuid)
		END
		WHERE id = $1
		RETURNING ` + lobbyColumns

	lobby, err := scanLobby(s.pool.QueryRow(ctx, query, lobbyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("hide lobby: %w", err)
	}
	return lobby, nil
}

// RemoveHidden rebuilds hidden_for without the given ids. array_remove
// only takes a single element, so unnest and filter instead.
func (s *LobbyStore) RemoveHidden(ctx context.Context, lobbyID string, userIDs ...uuid.UUID) (*models.ChatLobby, error) {
	query := `
		UPDATE chat_lobbies
		SET hidden_for = ARRAY(
			SELECT h FROM unnest(hidden_for) AS h
			WHERE NOT (h = ANY($2::uuid[]))
		)
		WHERE id = $1
		RETURNING ` + lobbyColumns

	lobby, err := scanLobby(s.pool.QueryRow(ctx, query, lobbyID, userIDs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("unhide lobby: %w", err)
	}
	return lobby, nil
}

func (s *LobbyStore) ClearHidden(ctx context.Context, lobbyID string) error {
	query := `UPDATE chat_lobbies SET hidden_for = '{}' WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, lobbyID); err != nil {
		return fmt.Errorf("clear lobby hidden: %w", err)
	}
	return nil
}
