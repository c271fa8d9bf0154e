package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homehive/internal/feed"
	"homehive/internal/models"
	"homehive/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, staticToken("tok"))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestLoadConversation(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/messages/7", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]models.Message{{ID: 1, Text: "hi"}, {ID: 2, Text: "there"}})
	}))

	messages, err := c.LoadConversation(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "there", messages[1].Text)
}

func TestSendMessage_JSONAndMultipart(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := models.Message{ID: 9, SenderID: 1, ReceiverID: 7}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			msg.Text = r.FormValue("text")
			f, fh, err := r.FormFile("media")
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(f)
			assert.Equal(t, "room.png", fh.Filename)
			assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
			assert.Equal(t, []byte("png-bytes"), data)
			msg.MediaURL = "/media/chat-media/room.png"
		} else {
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			msg.Text = body["text"]
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(msg)
	}))

	msg, err := c.SendMessage(context.Background(), 7, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Empty(t, msg.MediaURL)

	msg, err = c.SendMessage(context.Background(), 7, "look", &feed.Attachment{
		Filename: "room.png", ContentType: "image/png", Data: []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "look", msg.Text)
	assert.Equal(t, "/media/chat-media/room.png", msg.MediaURL)
}

func TestErrorResponse(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Message must contain text or media", Code: models.CodeValidation})
	}))

	_, err := c.SendMessage(context.Background(), 7, "", nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, models.CodeValidation, apiErr.Code)
	assert.Equal(t, "Message must contain text or media", apiErr.Message)
}

func TestListen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"ticket": "t-1", "expires_in": 30})
	})
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t-1", r.URL.Query().Get("ticket"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer func() { _ = conn.Close() }()

		payload, _ := notifications.Encode(notifications.EventMessageCreated, models.Message{ID: 3, Text: "ping"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"ignored"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
		// Hold the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := newClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan notifications.Event, 1)
	errc := make(chan error, 1)
	var connected atomic.Int32
	go func() {
		errc <- c.Listen(ctx, func() { connected.Add(1) }, func(ev notifications.Event) { events <- ev })
	}()

	select {
	case ev := <-events:
		assert.EqualValues(t, 1, connected.Load(), "connected before the first event")
		assert.Equal(t, notifications.EventMessageCreated, ev.Type)
		var msg models.Message
		require.NoError(t, json.Unmarshal(ev.Payload, &msg))
		assert.Equal(t, "ping", msg.Text)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestFollow_ResumesAfterReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var dials atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ticket": "t", "expires_in": 30})
	})
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer func() { _ = conn.Close() }()

		n := dials.Add(1)
		payload, _ := notifications.Encode(notifications.EventMessageCreated, models.Message{ID: uint(n), Text: "hello"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
		if n == 1 {
			// Drop the first connection straight away.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := newClient(t, mux)
	c.retryMin, c.retryMax = 10*time.Millisecond, 20*time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var log []string
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Follow(ctx,
			func() { record("resume") },
			func(ev notifications.Event) {
				var msg models.Message
				_ = json.Unmarshal(ev.Payload, &msg)
				record(fmt.Sprintf("event %d", msg.ID))
			},
			func(error, time.Duration) { record("drop") },
		)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(log) > 0 && log[len(log)-1] == "event 2"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"event 1", "drop", "resume", "event 2"}, log)
}

func TestSocketURL(t *testing.T) {
	c, err := New("https://api.homehive.test/", nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://api.homehive.test/api/ws?ticket=abc", c.socketURL("abc"))
}
