package chat

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/repository"
	"go.uber.org/zap"
)

// TribeLobbyService manages the single chat lobby of each tribe. The lobby
// id is the tribe id; membership is owned by the tribe collaborator.
type TribeLobbyService struct {
	lobbies repository.TribeLobbyRepository
	tribes  repository.TribeMembership
	logger  *zap.Logger
}

func NewTribeLobbyService(lobbies repository.TribeLobbyRepository, tribes repository.TribeMembership, logger *zap.Logger) *TribeLobbyService {
	return &TribeLobbyService{lobbies: lobbies, tribes: tribes, logger: logger.Named("tribe_lobby")}
}

func (s *TribeLobbyService) GetOrCreate(ctx context.Context, tribeID uuid.UUID) (*models.TribeChatLobby, error) {
	ok, err := s.tribes.Exists(ctx, tribeID)
	if err != nil {
		return nil, fmt.Errorf("%w: look up tribe: %w", ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: tribe %s", ErrNotFound, tribeID)
	}

	lobby, created, err := s.lobbies.GetOrCreate(ctx, tribeID)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create tribe lobby: %w", ErrPersistence, err)
	}
	if created {
		s.logger.Info("tribe lobby created", zap.String("tribe_id", tribeID.String()))
	}
	return lobby, nil
}

// Participants returns the tribe's current members.
func (s *TribeLobbyService) Participants(ctx context.Context, lobbyID string) ([]uuid.UUID, error) {
	tribeID, err := uuid.Parse(lobbyID)
	if err != nil {
		return nil, fmt.Errorf("%w: tribe lobby %q", ErrNotFound, lobbyID)
	}
	ok, err := s.tribes.Exists(ctx, tribeID)
	if err != nil {
		return nil, fmt.Errorf("%w: look up tribe: %w", ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: tribe %s", ErrNotFound, tribeID)
	}
	members, err := s.tribes.ListParticipants(ctx, tribeID)
	if err != nil {
		return nil, fmt.Errorf("%w: list tribe members: %w", ErrPersistence, err)
	}
	return members, nil
}

func (s *TribeLobbyService) HideForUser(ctx context.Context, lobbyID string, user uuid.UUID) error {
	members, err := s.Participants(ctx, lobbyID)
	if err != nil {
		return err
	}
	if !slices.Contains(members, user) {
		return fmt.Errorf("%w: user is not a member of tribe %s", ErrValidation, lobbyID)
	}

	tribeID, _ := uuid.Parse(lobbyID)
	if _, err := s.GetOrCreate(ctx, tribeID); err != nil {
		return err
	}
	if _, err := s.lobbies.AddHidden(ctx, lobbyID, user); err != nil {
		return fmt.Errorf("%w: hide tribe lobby: %w", ErrPersistence, err)
	}
	return nil
}

func (s *TribeLobbyService) ClearHidden(ctx context.Context, lobbyID string) error {
	if err := s.lobbies.ClearHidden(ctx, lobbyID); err != nil {
		return fmt.Errorf("%w: clear hidden: %w", ErrPersistence, err)
	}
	return nil
}
