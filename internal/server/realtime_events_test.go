package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"homehive/internal/models"
	"homehive/internal/notifications"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, ch <-chan *redis.Message) notifications.Event {
	t.Helper()
	select {
	case msg := <-ch:
		ev, err := notifications.Decode([]byte(msg.Payload))
		require.NoError(t, err)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for realtime event")
		return notifications.Event{}
	}
}

func TestRealtime_EngagementBroadcast(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, ownerToken := env.createUser(t, "landlord")
	_, token := env.createUser(t, "tenant")

	sub := env.redis.Subscribe(ctx, notifications.BroadcastChannel())
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	listing := createListing(t, env, ownerToken, listingFields("Bedsitter with balcony", "Ngara", "Bedsitter", "12000"))
	ev := nextEvent(t, ch)
	assert.Equal(t, notifications.EventListingCreated, ev.Type)

	resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/listings/"+fmtUint(listing.ID)+"/like", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev = nextEvent(t, ch)
	require.Equal(t, notifications.EventListingEngagementUpdated, ev.Type)
	var counts notifications.EngagementPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &counts))
	assert.Equal(t, listing.ID, counts.ListingID)
	assert.EqualValues(t, 1, counts.LikesCount)
	assert.Zero(t, counts.CommentsCount)

	resp, _ = env.do(t, jsonRequest(http.MethodPost, "/api/listings/"+fmtUint(listing.ID)+"/comments", token, map[string]string{"text": "Available in June?"}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, notifications.EventCommentCreated, nextEvent(t, ch).Type)
	ev = nextEvent(t, ch)
	require.Equal(t, notifications.EventListingEngagementUpdated, ev.Type)
	require.NoError(t, json.Unmarshal(ev.Payload, &counts))
	assert.EqualValues(t, 1, counts.CommentsCount)
}

func TestRealtime_MessageToConversation(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	alice, aliceToken := env.createUser(t, "alice")
	bob, _ := env.createUser(t, "bob")

	sub := env.redis.Subscribe(ctx, notifications.ConversationChannel(alice.ID, bob.ID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/messages/"+fmtUint(bob.ID), aliceToken, map[string]string{"text": "hello"}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := nextEvent(t, sub.Channel())
	require.Equal(t, notifications.EventMessageCreated, ev.Type)
	var msg models.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &msg))
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, alice.ID, msg.SenderID)
}
