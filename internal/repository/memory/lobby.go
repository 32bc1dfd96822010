package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
)

// LobbyStore is the in-process LobbyRepository.
//
// One mutex guards both maps, so the lookup and the insert in GetOrCreate
// are a single step and two first contacts can't both create a lobby.
// Reads hand out copies; callers never alias the stored slices.
type LobbyStore struct {
	mu      sync.RWMutex
	lobbies map[string]*models.ChatLobby // lobbyID -> lobby
	bySet   map[string]string            // canonical participant key -> lobbyID
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]*models.ChatLobby),
		bySet:   make(map[string]string),
	}
}

// participantKey is the map form of the unique participants index. ids
// must be canonical, as for the Postgres store.
func participantKey(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func copyLobby(l *models.ChatLobby) *models.ChatLobby {
	out := *l
	out.Participants = slices.Clone(l.Participants)
	out.HiddenFor = slices.Clone(l.HiddenFor)
	return &out
}

func (s *LobbyStore) GetOrCreate(_ context.Context, participants []uuid.UUID) (*models.ChatLobby, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participantKey(participants)
	if id, ok := s.bySet[key]; ok {
		return copyLobby(s.lobbies[id]), false, nil
	}

	lobby := &models.ChatLobby{
		ID:           uuid.NewString(),
		Participants: slices.Clone(participants),
		HiddenFor:    []uuid.UUID{},
		CreatedAt:    time.Now().UTC(),
	}
	s.lobbies[lobby.ID] = lobby
	s.bySet[key] = lobby.ID
	return copyLobby(lobby), true, nil
}

func (s *LobbyStore) GetByID(_ context.Context, lobbyID string) (*models.ChatLobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	return copyLobby(lobby), nil
}

func (s *LobbyStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.ChatLobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ChatLobby, 0)
	for _, lobby := range s.lobbies {
		if lobby.HasParticipant(userID) && !lobby.IsHiddenFor(userID) {
			result = append(result, *copyLobby(lobby))
		}
	}
	slices.SortFunc(result, func(a, b models.ChatLobby) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (s *LobbyStore) AddHidden(_ context.Context, lobbyID string, userID uuid.UUID) (*models.ChatLobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	if !lobby.IsHiddenFor(userID) {
		lobby.HiddenFor = append(lobby.HiddenFor, userID)
	}
	return copyLobby(lobby), nil
}

func (s *LobbyStore) RemoveHidden(_ context.Context, lobbyID string, userIDs ...uuid.UUID) (*models.ChatLobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	lobby.HiddenFor = slices.DeleteFunc(lobby.HiddenFor, func(id uuid.UUID) bool {
		return slices.Contains(userIDs, id)
	})
	return copyLobby(lobby), nil
}

func (s *LobbyStore) ClearHidden(_ context.Context, lobbyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lobby, ok := s.lobbies[lobbyID]; ok {
		lobby.HiddenFor = []uuid.UUID{}
	}
	return nil
}

type TribeLobbyStore struct {
	mu      sync.RWMutex
	lobbies map[string]*models.TribeChatLobby
}

func NewTribeLobbyStore() *TribeLobbyStore {
	return &TribeLobbyStore{lobbies: make(map[string]*models.TribeChatLobby)}
}

func copyTribeLobby(l *models.TribeChatLobby) *models.TribeChatLobby {
	out := *l
	out.HiddenFor = slices.Clone(l.HiddenFor)
	return &out
}

func (s *TribeLobbyStore) GetOrCreate(_ context.Context, tribeID uuid.UUID) (*models.TribeChatLobby, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tribeID.String()
	if lobby, ok := s.lobbies[id]; ok {
		return copyTribeLobby(lobby), false, nil
	}
	lobby := &models.TribeChatLobby{
		ID:        id,
		TribeID:   tribeID,
		HiddenFor: []uuid.UUID{},
		CreatedAt: time.Now().UTC(),
	}
	s.lobbies[id] = lobby
	return copyTribeLobby(lobby), true, nil
}

func (s *TribeLobbyStore) GetByID(_ context.Context, lobbyID string) (*models.TribeChatLobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	return copyTribeLobby(lobby), nil
}

func (s *TribeLobbyStore) AddHidden(_ context.Context, lobbyID string, userID uuid.UUID) (*models.TribeChatLobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	if !slices.Contains(lobby.HiddenFor, userID) {
		lobby.HiddenFor = append(lobby.HiddenFor, userID)
	}
	return copyTribeLobby(lobby), nil
}

func (s *TribeLobbyStore) ClearHidden(_ context.Context, lobbyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lobby, ok := s.lobbies[lobbyID]; ok {
		lobby.HiddenFor = []uuid.UUID{}
	}
	return nil
}
