package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
)

// MessageStore keeps messages in insertion order, which is also id order.
type MessageStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Message

	// Now stamps SentAt. Tests replace it to control message age.
	Now func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{Now: time.Now}
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	out.DeletedFor = slices.Clone(m.DeletedFor)
	return &out
}

func (s *MessageStore) indexOf(messageID int64) int {
	return slices.IndexFunc(s.rows, func(m *models.Message) bool { return m.ID == messageID })
}

func (s *MessageStore) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	row := copyMessage(msg)
	row.ID = s.nextID
	row.SentAt = s.Now().UTC()
	row.Seen = false
	row.DeletedFor = []uuid.UUID{}
	s.rows = append(s.rows, row)
	return copyMessage(row), nil
}

func (s *MessageStore) GetByID(_ context.Context, messageID int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(messageID)
	if i < 0 {
		return nil, nil
	}
	return copyMessage(s.rows[i]), nil
}

func (s *MessageStore) ListVisible(_ context.Context, lobbyID string, viewer uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Message, 0)
	for _, m := range s.rows {
		if m.LobbyID == lobbyID && !m.IsDeletedFor(viewer) {
			result = append(result, *copyMessage(m))
		}
	}
	slices.SortStableFunc(result, func(a, b models.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return result, nil
}

func (s *MessageStore) MarkSeen(_ context.Context, messageID int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(messageID)
	if i < 0 {
		return nil, nil
	}
	s.rows[i].Seen = true
	return copyMessage(s.rows[i]), nil
}

func (s *MessageStore) Hide(_ context.Context, messageID int64, userID uuid.UUID, participants []uuid.UUID) (*models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(messageID)
	if i < 0 {
		return nil, false, nil
	}
	row := s.rows[i]
	if !row.IsDeletedFor(userID) {
		row.DeletedFor = append(row.DeletedFor, userID)
	}
	out := copyMessage(row)
	if row.IsDeletedForAll(participants) {
		s.rows = slices.Delete(s.rows, i, i+1)
		return out, true, nil
	}
	return out, false, nil
}

func (s *MessageStore) HideAll(_ context.Context, lobbyID string, userID uuid.UUID, participants []uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := make([]models.Message, 0)
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.LobbyID == lobbyID {
			if !row.IsDeletedFor(userID) {
				row.DeletedFor = append(row.DeletedFor, userID)
			}
			if row.IsDeletedForAll(participants) {
				purged = append(purged, *copyMessage(row))
				continue
			}
		}
		kept = append(kept, row)
	}
	clear(s.rows[len(kept):])
	s.rows = kept
	return purged, nil
}

func (s *MessageStore) Delete(_ context.Context, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(messageID)
	if i < 0 {
		return false, nil
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return true, nil
}

// Len reports how many messages are stored, across all lobbies.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
