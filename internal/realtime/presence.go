// Package realtime carries chat events over websockets: who is connected
// to which room, fan-out of events to room occupants (locally or through
// Redis), and the per-connection command loop.
package realtime

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/lalith-99/tribechat/internal/chat"
)

// Entry is one connection's presence.
type Entry struct {
	ConnID      string
	UserID      string
	DisplayName string
	Room        string

	seq uint64
}

// Registry maps connection ids to the room they joined. A connection is
// in at most one room; every mutation happens under one lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	seq     uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Join moves connID into room, replacing any earlier entry. It returns the
// room the connection was in before, or "".
func (r *Registry) Join(connID, userID, displayName, room string) (string, error) {
	userID = strings.TrimSpace(userID)
	displayName = strings.TrimSpace(displayName)
	room = strings.TrimSpace(room)
	if connID == "" || userID == "" || displayName == "" || room == "" {
		return "", fmt.Errorf("%w: name, room and userId are required", chat.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.entries[connID].Room
	r.seq++
	r.entries[connID] = Entry{
		ConnID:      connID,
		UserID:      userID,
		DisplayName: displayName,
		Room:        room,
		seq:         r.seq,
	}
	return previous, nil
}

func (r *Registry) Leave(connID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if ok {
		delete(r.entries, connID)
	}
	return e, ok
}

func (r *Registry) Get(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	return e, ok
}

func (r *Registry) inRoom(room string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries {
		if e.Room == room {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}

// RosterOf lists the display names in room, earliest join first.
func (r *Registry) RosterOf(room string) []string {
	entries := r.inRoom(room)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.DisplayName)
	}
	return names
}

// Members lists the connection ids in room.
func (r *Registry) Members(room string) []string {
	entries := r.inRoom(room)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ConnID)
	}
	return ids
}
