package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TribeStore reads tribe membership owned by the tribe service.
type TribeStore struct {
	pool *pgxpool.Pool
}

func NewTribeStore(pool *pgxpool.Pool) *TribeStore {
	return &TribeStore{pool: pool}
}

func (s *TribeStore) Exists(ctx context.Context, tribeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tribes WHERE id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, tribeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check tribe: %w", err)
	}
	return exists, nil
}

func (s *TribeStore) ListParticipants(ctx context.Context, tribeID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id
		FROM tribe_members
		WHERE tribe_id = $1
		ORDER BY joined_at ASC`

	rows, err := s.pool.Query(ctx, query, tribeID)
	if err != nil {
		return nil, fmt.Errorf("list tribe members: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect tribe members: %w", err)
	}
	return ids, nil
}
