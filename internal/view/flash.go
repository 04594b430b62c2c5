// Package view keeps one-shot flash notices in the cookie session.
package view

import (
	"fmt"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/ui"
)

const (
	flashSessionName = "chatapp-flash"
	flashKeySuccess  = "success"
	flashKeyError    = "error"
)

func setFlash(c echo.Context, key, message string) {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		c.Logger().Warnf("flash session unavailable: %v", err)
		return
	}
	sess.AddFlash(message, key)
	_ = sess.Save(c.Request(), c.Response())
}

func SetFlashSuccess(c echo.Context, message string) {
	setFlash(c, flashKeySuccess, message)
}

func SetFlashError(c echo.Context, message string) {
	setFlash(c, flashKeyError, message)
}

// GetFlashData reads and clears pending flashes.
func GetFlashData(c echo.Context) ui.Flashes {
	var out ui.Flashes
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return out
	}

	success := sess.Flashes(flashKeySuccess)
	failure := sess.Flashes(flashKeyError)
	if len(success) == 0 && len(failure) == 0 {
		return out
	}
	out.Success = toStrings(success)
	out.Error = toStrings(failure)
	_ = sess.Save(c.Request(), c.Response())
	return out
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
