package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/lalith-99/tribechat/internal/events"
	"go.uber.org/zap"
)

// Hub delivers frames to the clients connected to this process. Room
// membership comes from the Registry.
type Hub struct {
	registry *Registry
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(registry *Registry, logger *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.Named("hub"),
		clients:  make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

// Unregister forgets the client and closes its queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Broadcast encodes e and delivers it to every local occupant of room.
func (h *Hub) Broadcast(_ context.Context, room string, e events.Event) error {
	frame, err := events.Encode(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	h.Deliver(room, frame)
	return nil
}

// Deliver queues frame for every local occupant of room. Occupants whose
// queue is full are disconnected; the rest still get the frame.
func (h *Hub) Deliver(room string, frame []byte) {
	var slow []string

	h.mu.RLock()
	for _, id := range h.registry.Members(room) {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		if !c.Enqueue(frame) {
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.Warn("evicting slow client", zap.String("conn_id", id), zap.String("room", room))
		h.Unregister(id)
	}
}

// SendTo queues frame for a single connection.
func (h *Hub) SendTo(connID string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.Enqueue(frame) {
		h.Unregister(connID)
		return false
	}
	return true
}
