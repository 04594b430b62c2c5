// Package transport talks to the chat API over REST and WebSocket.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/chatapp/internal/config"
	"github.com/nfrund/chatapp/internal/domain"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// Tokens hands out bearer tokens and ends sessions the API rejects.
// *session.Manager implements it.
type Tokens interface {
	GetAccessToken(ctx context.Context) (string, error)
	ForceLogout(ctx context.Context, reason string) error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client is the authenticated facade over the chat API.
type Client struct {
	messagesURL string
	wsURL       string
	tokens      Tokens
	http        *http.Client
	dialer      *websocket.Dialer
	logger      *slog.Logger
}

// New builds a Client for the endpoints in cfg.
func New(cfg *config.Config, tokens Tokens, opts ...Option) *Client {
	c := &Client{
		messagesURL: cfg.MessagesURL(),
		wsURL:       cfg.WSURL,
		tokens:      tokens,
		http:        &http.Client{Timeout: 30 * time.Second},
		dialer:      websocket.DefaultDialer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", domain.ErrAuthenticationRequired
	}
	return token, nil
}

// GetMessages fetches the message collection in server order.
func (c *Client) GetMessages(ctx context.Context) ([]domain.Message, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.messagesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var messages []domain.Message
	if err := c.do(req, token, "fetch messages", &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// SendMessage posts msg and returns the server's confirmation.
func (c *Client) SendMessage(ctx context.Context, msg domain.Message) (*domain.Receipt, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var receipt domain.Receipt
	if err := c.do(req, token, "send message", &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) do(req *http.Request, token, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.expire(req.Context(), op)
		return fmt.Errorf("%w: %s: server rejected the token", domain.ErrSessionExpired, op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %s: decode response: %w", domain.ErrFetchFailed, op, err)
	}
	return nil
}

func (c *Client) expire(ctx context.Context, op string) {
	if err := c.tokens.ForceLogout(ctx, op+": unauthorized"); err != nil {
		c.logger.Error("Forced logout failed", "op", op, "error", err)
	}
}
