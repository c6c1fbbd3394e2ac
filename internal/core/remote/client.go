// Package remote talks to the support assistant backend over HTTP. It maps
// backend payloads onto the registry's shapes and never mutates local state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neilberkman/supportchat/internal/core/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every request
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize = 4 * 1024 * 1024
)

// Client is the Remote Sync Adapter
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	log     *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. It applies to the client given
// by WithHTTPClient whichever order the options come in.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit limits outgoing requests to rps per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.http.Timeout != c.timeout {
		// copy so a shared client passed in is left alone
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// BaseURL returns the backend URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListSessions returns the sessions the backend knows for ident, most recent first
func (c *Client) ListSessions(ctx context.Context, ident models.Identity) ([]SessionInfo, error) {
	q := url.Values{"email": {ident.Email}}
	var payload []sessionPayload
	if err := c.do(ctx, http.MethodGet, "/sessions", q, nil, &payload); err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(payload))
	for _, p := range payload {
		if p.SessionID == "" {
			continue
		}
		title := models.DefaultTitle
		if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
			title = strings.TrimSpace(*p.Title)
		}
		sessions = append(sessions, SessionInfo{
			ID:           p.SessionID,
			Title:        title,
			MessageCount: p.MessagesCount,
			LastActivity: parseActivity(p.LastActivity),
		})
	}
	return sessions, nil
}

// FetchHistory returns the normalized messages of one session
func (c *Client) FetchHistory(ctx context.Context, ident models.Identity, sessionID string) ([]models.Message, error) {
	q := url.Values{"email": {ident.Email}, "session_id": {sessionID}}
	var payload []historyPayload
	if err := c.do(ctx, http.MethodGet, "/history", q, nil, &payload); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(payload))
	for _, p := range payload {
		msgs = append(msgs, models.NewMessage(models.ParseRole(p.Role), models.NormalizeText(p.Text)))
	}
	return msgs, nil
}

// PostTurn sends a new user question. prior must hold only the messages
// before the question; the backend appends the question itself.
func (c *Client) PostTurn(ctx context.Context, ident models.Identity, sessionID, text string, prior []models.Message) (TurnResult, error) {
	req := chatRequest{
		Message:   text,
		History:   make([]historyPayload, 0, len(prior)),
		Email:     ident.Email,
		SessionID: sessionID,
	}
	for _, m := range prior {
		req.History = append(req.History, historyPayload{Role: string(m.Role), Text: m.Text})
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Answer:    models.NormalizeText(resp.Answer),
		SessionID: strings.TrimSpace(resp.SessionID),
	}, nil
}

// RenameSession sets a session's title on the backend
func (c *Client) RenameSession(ctx context.Context, ident models.Identity, sessionID, title string) error {
	var resp statusResponse
	req := titleRequest{Email: ident.Email, SessionID: sessionID, Title: title}
	if err := c.do(ctx, http.MethodPost, "/session/title", nil, req, &resp); err != nil {
		return err
	}
	return resp.check()
}

// DeleteSession removes a session and its messages on the backend
func (c *Client) DeleteSession(ctx context.Context, ident models.Identity, sessionID string) error {
	var resp statusResponse
	req := deleteRequest{Email: ident.Email, SessionID: sessionID}
	if err := c.do(ctx, http.MethodDelete, "/session", nil, req, &resp); err != nil {
		return err
	}
	return resp.check()
}

// Login checks credentials
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var resp statusResponse
	req := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, req, &resp); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Success: resp.Success != nil && *resp.Success, Message: resp.Message}, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	var resp statusResponse
	req := registerRequest{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email), Password: password}
	if err := c.do(ctx, http.MethodPost, "/register", nil, req, &resp); err != nil {
		return AuthResult{}, err
	}
	// Older backends answer register with only a message
	ok := resp.Success == nil || *resp.Success
	return AuthResult{Success: ok, Message: resp.Message}, nil
}

// Health checks that the backend is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (r statusResponse) check() error {
	if r.Success != nil && !*r.Success {
		if r.Message != "" {
			return fmt.Errorf("%w: %s", ErrRejected, r.Message)
		}
		return ErrRejected
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	c.log.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
