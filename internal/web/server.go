// Package web serves the local chat UI.
package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	echosession "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/chatapp/internal/config"
	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/hub"
	"github.com/nfrund/chatapp/internal/middleware"
	"github.com/nfrund/chatapp/internal/rendering"
	"github.com/nfrund/chatapp/internal/session"
)

const shutdownTimeout = 10 * time.Second

// API is the part of *transport.Client the UI uses.
type API interface {
	GetMessages(ctx context.Context) ([]domain.Message, error)
	SendMessage(ctx context.Context, msg domain.Message) (*domain.Receipt, error)
}

// LiveFeed is the part of *feed.Feed the UI uses.
type LiveFeed interface {
	Start(ctx context.Context, userID string) error
	Stop() error
	Running() bool
}

// Deps are the collaborators of the server.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	API      API
	Feed     LiveFeed
	Hub      *hub.Hub
	Logger   *slog.Logger
	// SessionSecret keys the flash cookie. A random key is used when empty.
	SessionSecret []byte
	// SecureCookies marks cookies Secure; leave off for plain http localhost.
	SecureCookies bool
	Now           func() time.Time
}

// Server holds the echo instance and the UI state.
type Server struct {
	E *echo.Echo

	cfg      *config.Config
	sessions *session.Manager
	api      API
	feed     LiveFeed
	hub      *hub.Hub
	renderer *rendering.UniversalRenderer
	state    *ChatState
	logger   *slog.Logger
	now      func() time.Time
}

// New builds the server and registers its routes.
func New(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	secret := d.SessionSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}

	renderer := rendering.NewUniversalRenderer()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.Validator = NewValidator()

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(d.Logger))
	e.Use(echomw.Recover())

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(echosession.Middleware(store))

	s := &Server{
		E:        e,
		cfg:      d.Config,
		sessions: d.Sessions,
		api:      d.API,
		feed:     d.Feed,
		hub:      d.Hub,
		renderer: renderer,
		state:    NewChatState(d.Now),
		logger:   d.Logger,
		now:      d.Now,
	}
	s.routes()
	return s, nil
}

// State exposes the chat state, mainly for tests.
func (s *Server) State() *ChatState {
	return s.state
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Web UI listening", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.feed.Stop(); err != nil {
		s.logger.Warn("Closing live feed failed", "error", err)
	}
	if err := s.E.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("Web UI stopped")
	return nil
}
