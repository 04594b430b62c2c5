package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
)

// Navigator sends the user agent to a URL. Login and logout are redirects,
// so the Manager never completes them itself.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

type contextKey string

const navigatorKey = contextKey("navigator")

// WithNavigator attaches a request-scoped navigator that takes precedence over
// the Manager's default.
func WithNavigator(ctx context.Context, nav Navigator) context.Context {
	return context.WithValue(ctx, navigatorKey, nav)
}

func navigatorFrom(ctx context.Context, fallback Navigator) Navigator {
	if nav, ok := ctx.Value(navigatorKey).(Navigator); ok && nav != nil {
		return nav
	}
	return fallback
}

// logNavigator only records where the user should have gone. It is the
// default when no user agent is attached, e.g. a background feed.
type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Navigate(ctx context.Context, url string) error {
	n.logger.Info("Navigation requested without a user agent", "url", url)
	return nil
}

// BrowserNavigator opens URLs in the desktop browser and prints them to Out
// so they can be copied when no browser is available.
type BrowserNavigator struct {
	Out io.Writer
	// NoBrowser only prints the URL.
	NoBrowser bool
}

func (b BrowserNavigator) Navigate(ctx context.Context, url string) error {
	if b.Out != nil {
		fmt.Fprintf(b.Out, "Open this URL in your browser:\n\n  %s\n\n", url)
	}
	if b.NoBrowser {
		return nil
	}
	if err := openBrowser(url); err != nil {
		slog.Warn("Could not open browser", "error", err)
	}
	return nil
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32.exe", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
