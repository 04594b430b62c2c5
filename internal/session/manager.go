// Package session owns the signed-in user and the access-token policy.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/identity"
)

// IdentityClient is the part of identity.Client the Manager drives.
type IdentityClient interface {
	SigninRedirectURL(ctx context.Context) (string, error)
	SigninRedirectCallback(ctx context.Context, params url.Values) (*identity.User, error)
	SigninSilent(ctx context.Context, u *identity.User) (*identity.User, error)
	SignoutRedirectURL(ctx context.Context, u *identity.User) (string, error)
	GetUser(ctx context.Context) (*identity.User, error)
}

// Option customises a Manager.
type Option func(*Manager)

// UseNavigator sets the navigator used when the context carries none.
func UseNavigator(nav Navigator) Option {
	return func(m *Manager) { m.nav = nav }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithStrictExpiry makes an expired session without a refresh token end the
// session instead of handing out the stale token.
func WithStrictExpiry() Option {
	return func(m *Manager) { m.strict = true }
}

// Manager is created once at startup and shared by every consumer.
type Manager struct {
	client IdentityClient
	nav    Navigator
	now    func() time.Time
	logger *slog.Logger
	strict bool

	// mu serialises token decisions so concurrent callers renew at most once.
	mu sync.Mutex
}

func NewManager(client IdentityClient, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.nav == nil {
		m.nav = logNavigator{logger: m.logger}
	}
	return m
}

// Login starts the redirect-based sign in.
func (m *Manager) Login(ctx context.Context) error {
	target, err := m.client.SigninRedirectURL(ctx)
	if err != nil {
		return fmt.Errorf("start login: %w", err)
	}
	return navigatorFrom(ctx, m.nav).Navigate(ctx, target)
}

// Logout ends the session and sends the user agent to the provider's logout page.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutLocked(ctx)
}

// ForceLogout ends a session the server or the provider no longer accepts.
func (m *Manager) ForceLogout(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Warn("Forcing logout", "reason", reason)
	return m.logoutLocked(ctx)
}

func (m *Manager) logoutLocked(ctx context.Context) error {
	u, err := m.client.GetUser(ctx)
	if err != nil {
		m.logger.Error("Failed to read user before logout", "error", err)
	}
	target, err := m.client.SignoutRedirectURL(ctx, u)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if target == "" {
		return nil
	}
	return navigatorFrom(ctx, m.nav).Navigate(ctx, target)
}

// HandleAuthentication completes the provider callback.
func (m *Manager) HandleAuthentication(ctx context.Context, params url.Values) (*Session, error) {
	u, err := m.client.SigninRedirectCallback(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("complete login: %w", err)
	}
	return fromUser(u, m.now()), nil
}

// GetUser returns the current session or nil. It never fails.
func (m *Manager) GetUser(ctx context.Context) *Session {
	u, err := m.client.GetUser(ctx)
	if err != nil {
		m.logger.Error("Failed to load user", "error", err)
		return nil
	}
	return fromUser(u, m.now())
}

// GetAccessToken returns a bearer token for API calls. An empty token with a
// nil error means nobody is signed in.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.client.GetUser(ctx)
	if err != nil {
		m.logger.Error("Failed to load user", "error", err)
		return "", nil
	}
	if u == nil {
		return "", nil
	}
	if !u.Expired(m.now()) {
		return u.AccessToken, nil
	}

	if u.RefreshToken == "" {
		if m.strict {
			m.endLocked(ctx, "access token expired without refresh token")
			return "", fmt.Errorf("%w: access token expired", domain.ErrSessionExpired)
		}
		// The API's 401 handling is the backstop for this token.
		m.logger.Warn("Access token expired and no refresh token; using it anyway", "expired_at", u.ExpiresAt)
		return u.AccessToken, nil
	}

	renewed, err := m.client.SigninSilent(ctx, u)
	if err != nil {
		m.endLocked(ctx, "silent renewal failed")
		return "", fmt.Errorf("%w: silent renewal failed: %w", domain.ErrSessionExpired, err)
	}
	m.logger.Debug("Access token renewed")
	return renewed.AccessToken, nil
}

func (m *Manager) endLocked(ctx context.Context, reason string) {
	m.logger.Warn("Forcing logout", "reason", reason)
	if err := m.logoutLocked(ctx); err != nil {
		m.logger.Error("Forced logout failed", "error", err)
	}
}
