package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func assertNothingQueued(t *testing.T, c *Client) {
	t.Helper()
	assert.Never(t, func() bool { return len(c.Send) > 0 }, 10*testPollInterval, testPollInterval)
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(context.Background(), 1))

	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline(context.Background(), 1))

	hub.UnregisterClient(b)
	hub.UnregisterClient(b)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, hub.IsOnline(context.Background(), 1))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(8, nil)
	assert.NoError(t, err)
}

func TestHub_DeliverRoutesByChannel(t *testing.T) {
	hub := NewHub()
	alice, _ := hub.Register(1, nil)
	bob, _ := hub.Register(2, nil)
	carol, _ := hub.Register(3, nil)

	hub.Deliver(ConversationChannel(2, 1), `{"type":"message_created","payload":{}}`)
	assert.Contains(t, receive(t, alice), "message_created")
	assert.Contains(t, receive(t, bob), "message_created")
	assertNothingQueued(t, carol)

	hub.Deliver(UserChannel(3), `{"type":"comment_created","payload":{}}`)
	assert.Contains(t, receive(t, carol), "comment_created")
	assertNothingQueued(t, alice)

	hub.Deliver(broadcastChannel, `{"type":"listing_created","payload":{}}`)
	for _, c := range []*Client{alice, bob, carol} {
		assert.Contains(t, receive(t, c), "listing_created")
	}

	hub.Deliver("game:room:1", `{}`)
	assertNothingQueued(t, alice)
}

func TestClient_TrySendReplacesOldestWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBufferSize; i++ {
		c.TrySend([]byte("x"))
	}
	c.TrySend([]byte("overflow"))

	require.Len(t, c.Send, sendBufferSize)
	var last []byte
	for len(c.Send) > 0 {
		last = <-c.Send
	}
	assert.Equal(t, dropNotice, last)
}

func TestClient_TrySendAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)
	close(c.Send)

	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	_, rdb := setupRedis(t)
	hub := NewHub(rdb)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	alice, _ := hub.Register(1, nil)
	bob, _ := hub.Register(2, nil)

	payload, err := Encode(EventMessageCreated, map[string]any{"id": 9})
	require.NoError(t, err)
	require.NoError(t, n.PublishConversation(ctx, 1, 2, payload))

	assert.JSONEq(t, payload, receive(t, alice))
	assert.JSONEq(t, payload, receive(t, bob))
}

func TestHub_PresenceSharedThroughRedis(t *testing.T) {
	mr, rdb := setupRedis(t)
	hubA := NewHub(rdb)
	hubB := NewHub(rdb)
	ctx := context.Background()

	c, err := hubA.Register(42, nil)
	require.NoError(t, err)
	assert.True(t, hubB.IsOnline(ctx, 42))

	hubA.UnregisterClient(c)
	assert.False(t, hubB.IsOnline(ctx, 42))

	_, err = hubA.Register(43, nil)
	require.NoError(t, err)
	mr.FastForward(2 * defaultPresenceTTL)
	assert.False(t, hubB.IsOnline(ctx, 43))
	assert.True(t, hubA.IsOnline(ctx, 43))
}
