package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
)

// Directory is an in-process stand-in for the profile and tribe services.
// It satisfies both repository.UserDirectory and repository.TribeMembership.
type Directory struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]models.User
	order  []uuid.UUID
	tribes map[uuid.UUID][]uuid.UUID // tribeID -> members in join order
}

func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[uuid.UUID]models.User),
		tribes: make(map[uuid.UUID][]uuid.UUID),
	}
}

// PutUser adds or renames a user.
func (d *Directory) PutUser(id uuid.UUID, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[id]; !ok {
		d.order = append(d.order, id)
	}
	d.users[id] = models.User{ID: id, DisplayName: displayName}
}

// PutTribe registers a tribe with its members.
func (d *Directory) PutTribe(tribeID uuid.UUID, members ...uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tribes[tribeID] = slices.Clone(members)
}

func (d *Directory) FindByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *Directory) FindMany(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[uuid.UUID]models.User, len(userIDs))
	for _, id := range userIDs {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *Directory) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.order), nil
}

func (d *Directory) Exists(_ context.Context, tribeID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tribes[tribeID]
	return ok, nil
}

func (d *Directory) ListParticipants(_ context.Context, tribeID uuid.UUID) ([]uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.tribes[tribeID]), nil
}

type notificationKey struct {
	kind string
	text string
}

type NotificationStore struct {
	mu    sync.Mutex
	sets  map[uuid.UUID]map[notificationKey]bool
	lists map[uuid.UUID][]models.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		sets:  make(map[uuid.UUID]map[notificationKey]bool),
		lists: make(map[uuid.UUID][]models.Notification),
	}
}

func (s *NotificationStore) AddToSet(_ context.Context, userID uuid.UUID, kind, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(userID, kind, text), nil
}

func (s *NotificationStore) add(userID uuid.UUID, kind, text string) bool {
	key := notificationKey{kind: kind, text: text}
	set, ok := s.sets[userID]
	if !ok {
		set = make(map[notificationKey]bool)
		s.sets[userID] = set
	}
	if set[key] {
		return false
	}
	set[key] = true
	s.lists[userID] = append(s.lists[userID], models.Notification{
		UserID:    userID,
		Type:      kind,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	return true
}

func (s *NotificationStore) AddToSetMany(_ context.Context, userIDs []uuid.UUID, kind, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, id := range userIDs {
		if s.add(id, kind, text) {
			added++
		}
	}
	return added, nil
}

func (s *NotificationStore) List(_ context.Context, userID uuid.UUID) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.lists[userID])
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}
