package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/stretchr/testify/assert"
)

type stubSessions struct {
	sess *session.Session
}

func (s stubSessions) GetUser(ctx context.Context) *session.Session {
	return s.sess
}

func TestRequireSession(t *testing.T) {
	newEcho := func(src SessionSource) *echo.Echo {
		e := echo.New()
		e.GET("/", func(c echo.Context) error {
			return c.String(http.StatusOK, "Welcome "+CurrentSession(c).UserID())
		}, RequireSession(src))
		return e
	}

	t.Run("anonymous visitors are redirected to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newEcho(stubSessions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	})

	t.Run("htmx requests get HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		newEcho(stubSessions{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get("HX-Redirect"))
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("signed in users pass through", func(t *testing.T) {
		src := stubSessions{sess: &session.Session{
			AccessToken: "tok",
			Profile:     map[string]any{"preferred_username": "alice"},
		}}
		rec := httptest.NewRecorder()
		newEcho(src).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome alice", rec.Body.String())
	})
}
