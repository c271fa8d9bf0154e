package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.PublishUser(ctx, 1, "payload"))
	assert.NoError(t, n.PublishBroadcast(ctx, "payload"))
	assert.NoError(t, n.PublishConversation(ctx, 1, 2, "payload"))
	assert.NoError(t, n.StartSubscriber(ctx, func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishBroadcast(ctx, "payload"))
}

func TestChannels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:100", UserChannel(100))
	assert.Equal(t, "chat:dm:3:8", ConversationChannel(8, 3))
	assert.Equal(t, ConversationChannel(3, 8), ConversationChannel(8, 3))
}

func TestRecipients(t *testing.T) {
	t.Parallel()
	tests := []struct {
		channel   string
		ids       []uint
		broadcast bool
		ok        bool
	}{
		{"notifications:user:5", []uint{5}, false, true},
		{"notifications:broadcast", nil, true, true},
		{"chat:dm:2:9", []uint{2, 9}, false, true},
		{"chat:dm:4:4", []uint{4}, false, true},
		{"notifications:user:abc", nil, false, false},
		{"chat:dm:x", nil, false, false},
		{"other", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			t.Parallel()
			ids, broadcast, ok := Recipients(tt.channel)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.broadcast, broadcast)
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	_, rdb := setupRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	require.NoError(t, n.StartSubscriber(ctx, func(_ string, payload string) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	}))

	require.NoError(t, n.PublishUser(context.Background(), 1, "before-cancel"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)

	_ = n.PublishUser(context.Background(), 1, "after-cancel")
	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 1
	}, 200*time.Millisecond, testPollInterval)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	raw, err := Encode(EventListingEngagementUpdated, EngagementPayload{ListingID: 3, LikesCount: 2, CommentsCount: 1})
	require.NoError(t, err)

	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventListingEngagementUpdated, ev.Type)

	var p EngagementPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, EngagementPayload{ListingID: 3, LikesCount: 2, CommentsCount: 1}, p)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
