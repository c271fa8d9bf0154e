package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"homehive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aliceToken := env.createUser(t, "alice")
	bob, _ := env.createUser(t, "bob")
	toBob := "/api/messages/" + fmtUint(bob.ID)

	t.Run("text", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, toBob, aliceToken, map[string]string{"text": " Is the flat still available? "}))
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var msg models.Message
		require.NoError(t, json.Unmarshal(body, &msg))
		assert.Equal(t, alice.ID, msg.SenderID)
		assert.Equal(t, bob.ID, msg.ReceiverID)
		assert.Equal(t, "Is the flat still available?", msg.Text)
		assert.Empty(t, msg.MediaURL)
	})

	t.Run("media only", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, toBob, aliceToken, nil,
			upload{field: "media", filename: "room.png", contentType: "image/png", data: pngFixture(t, 4, 4)})
		resp, body := env.do(t, req)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var msg models.Message
		require.NoError(t, json.Unmarshal(body, &msg))
		assert.True(t, strings.HasPrefix(msg.MediaURL, "/media/chat-media/"), msg.MediaURL)
	})

	tests := []struct {
		name   string
		target string
		token  string
		body   map[string]string
		want   int
	}{
		{"empty", toBob, aliceToken, map[string]string{"text": "  "}, http.StatusBadRequest},
		{"self", "/api/messages/" + fmtUint(alice.ID), aliceToken, map[string]string{"text": "hi"}, http.StatusBadRequest},
		{"unknown peer", "/api/messages/9999", aliceToken, map[string]string{"text": "hi"}, http.StatusNotFound},
		{"bad peer id", "/api/messages/bob", aliceToken, map[string]string{"text": "hi"}, http.StatusBadRequest},
		{"anonymous", toBob, "", map[string]string{"text": "hi"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, jsonRequest(http.MethodPost, tt.target, tt.token, tt.body))
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestConversationAndInbox(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aliceToken := env.createUser(t, "alice")
	bob, bobToken := env.createUser(t, "bob")
	carol, carolToken := env.createUser(t, "carol")

	send := func(token string, to uint, text string) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/messages/"+fmtUint(to), token, map[string]string{"text": text}))
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	}
	send(aliceToken, bob.ID, "hello bob")
	send(bobToken, alice.ID, "hi alice")
	send(carolToken, alice.ID, "viewing on Saturday?")

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/messages/"+fmtUint(bob.ID), aliceToken, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var convo []models.Message
	require.NoError(t, json.Unmarshal(body, &convo))
	require.Len(t, convo, 2)
	assert.Equal(t, "hello bob", convo[0].Text, "oldest first")
	assert.Equal(t, "hi alice", convo[1].Text)

	resp, body = env.do(t, jsonRequest(http.MethodGet, "/api/messages", aliceToken, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inbox []models.ConversationSummary
	require.NoError(t, json.Unmarshal(body, &inbox))
	require.Len(t, inbox, 2)
	require.NotNil(t, inbox[0].Peer)
	assert.Equal(t, carol.ID, inbox[0].Peer.ID)
	assert.Equal(t, "viewing on Saturday?", inbox[0].LastMessage.Text)
	assert.Equal(t, bob.ID, inbox[1].Peer.ID)
	assert.Equal(t, "hi alice", inbox[1].LastMessage.Text)
}
