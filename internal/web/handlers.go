package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/config"
	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/middleware"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/nfrund/chatapp/internal/ui"
	"github.com/nfrund/chatapp/internal/view"

	g "maragu.dev/gomponents"
)

// requestContext attaches a navigator that redirects this request.
func requestContext(c echo.Context) context.Context {
	return session.WithNavigator(c.Request().Context(), session.NavigatorFunc(func(ctx context.Context, url string) error {
		return middleware.Redirect(c, url)
	}))
}

// Home renders the app with the General Chat loaded from the API.
func (s *Server) Home(c echo.Context) error {
	ctx := requestContext(c)
	log := middleware.FromContext(ctx)
	sess := middleware.CurrentSession(c)

	msgs, err := s.api.GetMessages(ctx)
	switch {
	case err == nil:
		s.state.Load(msgs)
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrAuthenticationRequired):
		return s.sessionEnded(c, err)
	default:
		log.Error("Failed to fetch messages", "error", err)
		view.SetFlashError(c, "Failed to fetch messages")
	}

	if !s.feed.Running() {
		if err := s.feed.Start(ctx, sess.UserID()); err != nil {
			if errors.Is(err, domain.ErrSessionExpired) {
				return s.sessionEnded(c, err)
			}
			log.Warn("Live feed unavailable", "error", err)
			view.SetFlashError(c, "Live updates are unavailable")
		}
	}

	sidebar, active := s.state.Snapshot()
	return c.Render(http.StatusOK, "", ui.AppPage(ui.PageData{
		UserID:   sess.UserID(),
		Flashes:  view.GetFlashData(c),
		Sidebar:  sidebar,
		Active:   active,
		Composer: ui.NewComposer(active.ID, nil),
	}))
}

// sessionEnded finishes a request whose session was rejected. A forced logout
// may already have redirected the browser.
func (s *Server) sessionEnded(c echo.Context, err error) error {
	middleware.FromContext(c.Request().Context()).Warn("Session ended", "error", err)
	if c.Response().Committed {
		return nil
	}
	return middleware.Redirect(c, "/auth/login")
}

// SelectChat swaps the sidebar and the chat window to the chosen chat.
func (s *Server) SelectChat(c echo.Context) error {
	if !s.state.Select(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	sidebar, active := s.state.Snapshot()
	return c.Render(http.StatusOK, "", g.Group{sidebar.Node(), ui.ChatWindowSwap(active)})
}

// PostMessage runs the composer over the submitted form and sends what it emits.
func (s *Server) PostMessage(c echo.Context) error {
	ctx := requestContext(c)
	log := middleware.FromContext(ctx)

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	var content string
	composer := ui.NewComposer(req.ChatID, func(text string) { content = text })
	composer.SetValue(req.Content)
	if !composer.Submit() {
		return c.NoContent(http.StatusNoContent)
	}

	msg := domain.Message{
		UserID:    middleware.CurrentSession(c).UserID(),
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	receipt, err := s.api.SendMessage(ctx, msg)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrAuthenticationRequired) {
			return s.sessionEnded(c, err)
		}
		log.Error("Failed to send message", "error", err)
		// Keep the draft so the user can retry.
		composer.SetValue(req.Content)
		return c.Render(http.StatusOK, "", g.Group{
			composer.Node(),
			ui.FlashListSwap(ui.Flashes{Error: []string{"Failed to send message"}}),
		})
	}

	log.Info("Message sent", "message_id", receipt.MessageID, "status", receipt.Status)
	return c.Render(http.StatusOK, "", composer.Node())
}

// Login redirects to the identity provider.
func (s *Server) Login(c echo.Context) error {
	if err := s.sessions.Login(requestContext(c)); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Login failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "identity provider unavailable")
	}
	return s.ensureResponse(c)
}

// Callback completes the login. Without an authorization response it is the
// post-logout landing page.
func (s *Server) Callback(c echo.Context) error {
	params := c.QueryParams()
	if params.Get("code") == "" && params.Get("error") == "" {
		return c.Render(http.StatusOK, "", ui.SignedOutPage(view.GetFlashData(c)))
	}

	sess, err := s.sessions.HandleAuthentication(c.Request().Context(), params)
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("Login callback failed", "error", err)
		return c.Render(http.StatusUnauthorized, "", ui.SignedOutPage(ui.Flashes{Error: []string{"Login failed"}}))
	}

	view.SetFlashSuccess(c, "Signed in as "+sess.UserID())
	return c.Redirect(http.StatusSeeOther, "/")
}

// Logout closes the live feed and ends the session at the provider.
func (s *Server) Logout(c echo.Context) error {
	if err := s.feed.Stop(); err != nil {
		middleware.FromContext(c.Request().Context()).Warn("Closing live feed failed", "error", err)
	}
	if err := s.sessions.Logout(requestContext(c)); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Logout failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "logout failed")
	}
	if c.Response().Committed {
		return nil
	}
	target := s.cfg.PostLogoutRedirectURI()
	if target == "" {
		target = "/auth/callback"
	}
	return middleware.Redirect(c, target)
}

func (s *Server) ensureResponse(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return c.NoContent(http.StatusNoContent)
}

// ConfigScript serves the runtime configuration object.
func (s *Server) ConfigScript(c echo.Context) error {
	script, err := config.RuntimeScript(s.cfg)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", script)
}

// Health reports liveness and whether the live feed is connected.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"live_feed":   s.feed.Running(),
		"subscribers": s.hub.Count(),
	})
}
