package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lalith-99/tribechat/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// joinClient registers a pump-less client so tests can inspect its queue.
func joinClient(t *testing.T, hub *Hub, reg *Registry, name, room string, queue int) *Client {
	t.Helper()
	c := NewClient(nil, queue, zap.NewNop())
	hub.Register(c)
	_, err := reg.Join(c.ID(), "user-"+name, name, room)
	require.NoError(t, err)
	return c
}

func nextFrame(t *testing.T, c *Client) events.Frame {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "queue closed")
		var f events.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return events.Frame{}
	}
}

func TestHub_BroadcastReachesOnlyTheRoom(t *testing.T) {
	reg := NewRegistry()
	hub := NewHub(reg, zap.NewNop())

	ann := joinClient(t, hub, reg, "ann", "room-a", 4)
	bob := joinClient(t, hub, reg, "bob", "room-a", 4)
	cat := joinClient(t, hub, reg, "cat", "room-b", 4)

	require.NoError(t, hub.Broadcast(context.Background(), "room-a", events.MessageDeleted{MessageID: 7}))

	for _, c := range []*Client{ann, bob} {
		f := nextFrame(t, c)
		assert.Equal(t, events.NameMessageDeleted, f.Event)
		assert.JSONEq(t, `{"messageId":7}`, string(f.Data))
	}
	assert.Empty(t, cat.send)
}

func TestHub_SlowClientIsEvictedOthersStillReceive(t *testing.T) {
	reg := NewRegistry()
	hub := NewHub(reg, zap.NewNop())

	slow := joinClient(t, hub, reg, "slow", "room", 1)
	fast := joinClient(t, hub, reg, "fast", "room", 8)

	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, hub.Broadcast(ctx, "room", events.MessageDeleted{MessageID: int64(i)}))
	}

	for range 3 {
		assert.Equal(t, events.NameMessageDeleted, nextFrame(t, fast).Event)
	}

	assert.False(t, slow.Enqueue([]byte("{}")), "evicted client accepts no frames")
	hub.mu.RLock()
	_, stillThere := hub.clients[slow.ID()]
	hub.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestRedisBus_RelaysAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() (*RedisBus, *Hub, *Registry) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		reg := NewRegistry()
		hub := NewHub(reg, zap.NewNop())
		bus := NewRedisBus(rdb, hub, zap.NewNop())
		require.NoError(t, bus.Start(ctx))
		return bus, hub, reg
	}

	busA, hubA, regA := newInstance()
	_, hubB, regB := newInstance()

	ann := joinClient(t, hubA, regA, "ann", "lobby", 4)
	bob := joinClient(t, hubB, regB, "bob", "lobby", 4)

	require.NoError(t, busA.Broadcast(ctx, "lobby", events.UpdateUserList{Users: []string{"ann", "bob"}}))

	for _, c := range []*Client{ann, bob} {
		f := nextFrame(t, c)
		assert.Equal(t, events.NameUpdateUserList, f.Event)
		assert.JSONEq(t, `{"users":["ann","bob"]}`, string(f.Data))
	}
}

func TestRedisBus_PublishFailureStillDeliversLocally(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	reg := NewRegistry()
	hub := NewHub(reg, zap.NewNop())
	bus := NewRedisBus(rdb, hub, zap.NewNop())
	require.NoError(t, bus.Start(ctx))

	ann := joinClient(t, hub, reg, "ann", "lobby", 4)
	mr.Close()

	require.NoError(t, bus.Broadcast(ctx, "lobby", events.MessageDeleted{MessageID: 9}))
	f := nextFrame(t, ann)
	assert.Equal(t, events.NameMessageDeleted, f.Event)
	assert.JSONEq(t, `{"messageId":9}`, string(f.Data))
}
