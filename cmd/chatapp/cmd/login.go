package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/rendering"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/nfrund/chatapp/internal/ui"
	"github.com/spf13/cobra"
)

var (
	loginNoBrowser bool
	loginTimeout   time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the OIDC provider",
	Long: `Start the authorization-code flow. chatapp listens on the host and port of
the configured redirect URI, opens the provider's login page in the browser
(or prints it with --no-browser) and stores the session once the provider
redirects back.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the provider to redirect back")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	nav := session.BrowserNavigator{Out: cmd.OutOrStdout(), NoBrowser: loginNoBrowser}
	a := newApp(ctx, nav)
	defer a.Close()

	cfg, err := a.Config()
	if err != nil {
		return err
	}
	if cfg.RedirectURI == "" {
		return errors.New("no redirect URI configured; set VUE_APP_DEX_REDIRECT_URI")
	}
	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil {
		return fmt.Errorf("parse redirect URI: %w", err)
	}
	sessions, err := a.Sessions()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen for the login callback on %s: %w", redirect.Host, err)
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	sess, err := completeLogin(ctx, sessions, ln, redirect.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.UserID())
	return nil
}

type loginResult struct {
	sess *session.Session
	err  error
}

// completeLogin serves the callback path on ln, starts the login and waits
// for the first callback. ln is closed on return.
func completeLogin(ctx context.Context, sessions *session.Manager, ln net.Listener, path string) (*session.Session, error) {
	if path == "" {
		path = "/"
	}
	results := make(chan loginResult, 1)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = rendering.NewUniversalRenderer()
	e.GET(path, func(c echo.Context) error {
		sess, err := sessions.HandleAuthentication(c.Request().Context(), c.QueryParams())
		select {
		case results <- loginResult{sess: sess, err: err}:
		default:
		}
		if err != nil {
			return c.Render(http.StatusUnauthorized, "", rendering.Templ(ui.LoginResultPage("", err)))
		}
		return c.Render(http.StatusOK, "", rendering.Templ(ui.LoginResultPage(sess.UserID(), nil)))
	})

	srv := &http.Server{Handler: e, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- loginResult{err: fmt.Errorf("callback listener: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := sessions.Login(ctx); err != nil {
		return nil, err
	}

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("login: %w", r.err)
		}
		return r.sess, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("login: waiting for the provider: %w", ctx.Err())
	}
}
