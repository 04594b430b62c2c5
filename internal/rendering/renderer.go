// Package rendering turns templ components and gomponents nodes into bytes
// for echo responses and websocket pushes.
package rendering

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Renderer renders either component flavour.
type Renderer interface {
	// Fragment renders to bytes, for htmx fragments pushed over a socket.
	Fragment(ctx context.Context, component any) ([]byte, error)
	// Page streams a full response.
	Page(c echo.Context, status int, component any) error
}

// nodeRenderer is satisfied by gomponents.Node.
type nodeRenderer interface {
	Render(w io.Writer) error
}

// UniversalRenderer implements Renderer and echo.Renderer.
type UniversalRenderer struct{}

func NewUniversalRenderer() *UniversalRenderer {
	return &UniversalRenderer{}
}

func (r *UniversalRenderer) render(ctx context.Context, component any, w io.Writer) error {
	switch c := component.(type) {
	case templ.Component:
		return c.Render(ctx, w)
	case nodeRenderer:
		return c.Render(w)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported component type %T", component)
	}
}

func (r *UniversalRenderer) Fragment(ctx context.Context, component any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.render(ctx, component, &buf); err != nil {
		return nil, fmt.Errorf("render fragment: %w", err)
	}
	return buf.Bytes(), nil
}

// Page renders into a buffer first so a failed render can still become a
// proper error response.
func (r *UniversalRenderer) Page(c echo.Context, status int, component any) error {
	body, err := r.Fragment(c.Request().Context(), component)
	if err != nil {
		return err
	}
	return c.HTMLBlob(status, body)
}

// Render implements echo.Renderer so handlers can call c.Render(status, "", component).
func (r *UniversalRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	}
	return r.render(c.Request().Context(), data, w)
}

// Templ adapts a gomponents node so it can be embedded in a templ layout.
func Templ(n nodeRenderer) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return n.Render(w)
	})
}
