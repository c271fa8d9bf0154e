// Package apiclient talks to the Home Hive HTTP API and its realtime socket.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"homehive/internal/feed"
	"homehive/internal/models"
)

// TokenSource supplies the bearer token for each request. *feed.Session is one.
type TokenSource interface {
	Token() string
}

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource

	// Redial backoff bounds for Follow.
	retryMin time.Duration
	retryMax time.Duration
}

// APIError is a non-2xx response decoded from models.ErrorResponse.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// AuthResult is returned by Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func New(baseURL string, tokens TokenSource) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	return &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: 30 * time.Second},
		tokens:   tokens,
		retryMin: time.Second,
		retryMax: 30 * time.Second,
	}, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	var users []*models.User
	path := "/api/users/search?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Inbox(ctx context.Context) ([]models.ConversationSummary, error) {
	var inbox []models.ConversationSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages", nil, &inbox); err != nil {
		return nil, err
	}
	return inbox, nil
}

// LoadConversation returns the full history with peerID, oldest first.
func (c *Client) LoadConversation(ctx context.Context, peerID uint) ([]*models.Message, error) {
	var messages []*models.Message
	if err := c.doJSON(ctx, http.MethodGet, messagesPath(peerID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts JSON for text-only messages and a multipart form when media
// is attached.
func (c *Client) SendMessage(ctx context.Context, peerID uint, text string, media *feed.Attachment) (*models.Message, error) {
	var msg models.Message
	if media == nil {
		if err := c.doJSON(ctx, http.MethodPost, messagesPath(peerID), map[string]string{"text": text}, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("text", text); err != nil {
		return nil, err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, media.Filename))
	if media.ContentType != "" {
		h.Set("Content-Type", media.ContentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(media.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := c.do(ctx, http.MethodPost, messagesPath(peerID), w.FormDataContentType(), &body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// IssueTicket requests a single-use websocket ticket.
func (c *Client) IssueTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/ws/ticket", nil, &out); err != nil {
		return "", err
	}
	if out.Ticket == "" {
		return "", errors.New("server returned an empty ticket")
	}
	return out.Ticket, nil
}

func messagesPath(peerID uint) string {
	return "/api/messages/" + strconv.FormatUint(uint64(peerID), 10)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	}
	return apiErr
}
