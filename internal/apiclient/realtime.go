package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"homehive/internal/notifications"

	"github.com/gorilla/websocket"
)

// Listen opens the realtime socket with a fresh ticket and calls onEvent for every
// event until ctx is cancelled or the connection fails. onConnected, when set, runs
// once the socket is up and before the first event is read. It returns nil when
// ctx ends the stream.
func (c *Client) Listen(ctx context.Context, onConnected func(), onEvent func(notifications.Event)) error {
	ticket, err := c.IssueTicket(ctx)
	if err != nil {
		return fmt.Errorf("issue ticket: %w", err)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.socketURL(ticket), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial realtime socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	if onConnected != nil {
		onConnected()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		ev, err := notifications.Decode(data)
		if err != nil {
			// Error frames such as {"error":"..."} carry no type.
			continue
		}
		onEvent(ev)
	}
}

// Follow keeps the realtime stream open until ctx ends, redialing with backoff
// after every failure. Events published while the socket was down are not
// replayed by the server, so onResume runs after each reconnect (never on the
// first connect) before events flow again. onDrop, when set, sees each failure.
func (c *Client) Follow(ctx context.Context, onResume func(), onEvent func(notifications.Event), onDrop func(err error, retryIn time.Duration)) {
	backoff := c.retryMin
	connected := false
	for {
		err := c.Listen(ctx, func() {
			if connected && onResume != nil {
				onResume()
			}
			connected = true
			backoff = c.retryMin
		}, onEvent)
		if ctx.Err() != nil {
			return
		}
		if onDrop != nil {
			onDrop(err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.retryMax {
			backoff = c.retryMax
		}
	}
}

func (c *Client) socketURL(ticket string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/ws"
	u.RawQuery = url.Values{"ticket": {ticket}}.Encode()
	return u.String()
}
