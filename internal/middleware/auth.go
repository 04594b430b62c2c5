package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/session"
)

// SessionContextKey is where RequireSession stores the *session.Session.
const SessionContextKey = "session"

// SessionSource is satisfied by *session.Manager.
type SessionSource interface {
	GetUser(ctx context.Context) *session.Session
}

// RequireSession sends visitors without a session to the login route.
func RequireSession(sessions SessionSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := sessions.GetUser(c.Request().Context())
			if sess == nil || sess.AccessToken == "" {
				return Redirect(c, "/auth/login")
			}
			c.Set(SessionContextKey, sess)
			return next(c)
		}
	}
}

// CurrentSession returns the session RequireSession stored, or nil.
func CurrentSession(c echo.Context) *session.Session {
	sess, _ := c.Get(SessionContextKey).(*session.Session)
	return sess
}

// Redirect navigates the browser to target. htmx requests get an HX-Redirect
// header, since htmx would otherwise swap the redirected page into the target.
func Redirect(c echo.Context, target string) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Redirect", target)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, target)
}
