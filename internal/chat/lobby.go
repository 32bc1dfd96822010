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

// LobbyService manages direct and group lobbies.
type LobbyService struct {
	lobbies repository.LobbyRepository
	users   repository.UserDirectory
	logger  *zap.Logger
}

func NewLobbyService(lobbies repository.LobbyRepository, users repository.UserDirectory, logger *zap.Logger) *LobbyService {
	return &LobbyService{lobbies: lobbies, users: users, logger: logger.Named("lobby")}
}

// GetOrCreateDirect returns the lobby shared by exactly a and b.
// Argument order does not matter.
func (s *LobbyService) GetOrCreateDirect(ctx context.Context, a, b uuid.UUID) (*models.ChatLobby, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return nil, fmt.Errorf("%w: participant id is required", ErrValidation)
	}
	if a == b {
		return nil, fmt.Errorf("%w: cannot open a lobby with yourself", ErrValidation)
	}
	return s.getOrCreate(ctx, []uuid.UUID{a, b})
}

// GetOrCreateGroup returns the lobby whose participant set equals ids
// exactly. Duplicate ids are collapsed.
func (s *LobbyService) GetOrCreateGroup(ctx context.Context, ids []uuid.UUID) (*models.ChatLobby, error) {
	if slices.Contains(ids, uuid.Nil) {
		return nil, fmt.Errorf("%w: participant id is required", ErrValidation)
	}
	participants := models.CanonicalParticipants(ids)
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: a lobby needs at least two distinct participants", ErrValidation)
	}
	return s.getOrCreate(ctx, participants)
}

func (s *LobbyService) getOrCreate(ctx context.Context, ids []uuid.UUID) (*models.ChatLobby, error) {
	lobby, created, err := s.lobbies.GetOrCreate(ctx, models.CanonicalParticipants(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: get or create lobby: %w", ErrPersistence, err)
	}
	if created {
		s.logger.Info("lobby created",
			zap.String("lobby_id", lobby.ID),
			zap.Int("participants", len(lobby.Participants)),
		)
	}
	return lobby, nil
}

// ReactivateForBothSides is the explicit "start chat" action: it opens the
// direct lobby and makes it visible again to both users.
func (s *LobbyService) ReactivateForBothSides(ctx context.Context, a, b uuid.UUID) (*models.ChatLobby, error) {
	lobby, err := s.GetOrCreateDirect(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if len(lobby.HiddenFor) == 0 {
		return lobby, nil
	}
	lobby, err = s.lobbies.RemoveHidden(ctx, lobby.ID, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: unhide lobby: %w", ErrPersistence, err)
	}
	if lobby == nil {
		return nil, fmt.Errorf("%w: lobby", ErrNotFound)
	}
	return lobby, nil
}

func (s *LobbyService) Get(ctx context.Context, lobbyID string) (*models.ChatLobby, error) {
	lobby, err := s.lobbies.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("%w: get lobby: %w", ErrPersistence, err)
	}
	if lobby == nil {
		return nil, fmt.Errorf("%w: lobby %s", ErrNotFound, lobbyID)
	}
	return lobby, nil
}

// HideForUser removes the lobby from user's list. Hiding twice is a no-op.
func (s *LobbyService) HideForUser(ctx context.Context, lobbyID string, user uuid.UUID) error {
	lobby, err := s.Get(ctx, lobbyID)
	if err != nil {
		return err
	}
	if !lobby.HasParticipant(user) {
		return fmt.Errorf("%w: user is not a participant of lobby %s", ErrValidation, lobbyID)
	}
	if lobby.IsHiddenFor(user) {
		return nil
	}
	if _, err := s.lobbies.AddHidden(ctx, lobbyID, user); err != nil {
		return fmt.Errorf("%w: hide lobby: %w", ErrPersistence, err)
	}
	return nil
}

// ClearHidden makes the lobby visible to every participant again. It runs
// on every new message.
func (s *LobbyService) ClearHidden(ctx context.Context, lobbyID string) error {
	if err := s.lobbies.ClearHidden(ctx, lobbyID); err != nil {
		return fmt.Errorf("%w: clear hidden: %w", ErrPersistence, err)
	}
	return nil
}

func (s *LobbyService) ListForUser(ctx context.Context, user uuid.UUID) ([]models.ChatLobby, error) {
	lobbies, err := s.lobbies.ListForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: list lobbies: %w", ErrPersistence, err)
	}
	return lobbies, nil
}

func (s *LobbyService) Participants(ctx context.Context, lobbyID string) ([]uuid.UUID, error) {
	lobby, err := s.Get(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	return lobby.Participants, nil
}

// LobbySummary is a lobby as shown in a user's chat list.
type LobbySummary struct {
	models.ChatLobby
	Counterparts []models.User `json:"counterparts"`
}

// Counterparts joins every lobby with the profiles of its participants
// other than viewer. Users missing from the directory are skipped.
func (s *LobbyService) Counterparts(ctx context.Context, viewer uuid.UUID, lobbies []models.ChatLobby) ([]LobbySummary, error) {
	var ids []uuid.UUID
	for _, l := range lobbies {
		for _, p := range l.Participants {
			if p != viewer {
				ids = append(ids, p)
			}
		}
	}

	profiles, err := s.users.FindMany(ctx, models.CanonicalParticipants(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: load counterparts: %w", ErrPersistence, err)
	}

	out := make([]LobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		summary := LobbySummary{ChatLobby: l, Counterparts: []models.User{}}
		for _, p := range l.Participants {
			if u, ok := profiles[p]; ok && p != viewer {
				summary.Counterparts = append(summary.Counterparts, u)
			}
		}
		out = append(out, summary)
	}
	return out, nil
}
