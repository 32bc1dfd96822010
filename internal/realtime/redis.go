package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lalith-99/tribechat/internal/events"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BroadcastChannel is the Redis pub/sub channel shared by all instances.
const BroadcastChannel = "chat:broadcast"

type envelope struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RedisBus relays broadcasts through Redis so that occupants of a room
// connected to other instances receive them too. Every instance,
// including the publisher, delivers what it reads from the channel to its
// own Hub, so each connection sees an event once.
type RedisBus struct {
	rdb    *redis.Client
	local  *Hub
	logger *zap.Logger
}

func NewRedisBus(rdb *redis.Client, local *Hub, logger *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, local: local, logger: logger.Named("redis_bus")}
}

func (b *RedisBus) Broadcast(ctx context.Context, room string, e events.Event) error {
	frame, err := events.Encode(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	payload, err := json.Marshal(envelope{Room: room, Frame: frame})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	// Without Redis the event can still reach this instance's occupants.
	if err := b.rdb.Publish(ctx, BroadcastChannel, payload).Err(); err != nil {
		b.logger.Warn("publish failed, delivering locally only",
			zap.String("room", room),
			zap.String("event", string(e.Name())),
			zap.Error(err),
		)
		b.local.Deliver(room, frame)
	}
	return nil
}

// Start subscribes to the broadcast channel and relays messages to the
// local hub until ctx is cancelled. It returns once the subscription is
// confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", BroadcastChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.relay(msg.Payload)
			}
		}
	}()

	b.logger.Info("subscribed", zap.String("channel", BroadcastChannel))
	return nil
}

func (b *RedisBus) relay(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("dropping malformed broadcast", zap.Error(err))
		return
	}
	b.local.Deliver(env.Room, env.Frame)
}
