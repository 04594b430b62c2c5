package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nfrund/chatapp/internal/app"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/spf13/cobra"
)

var (
	runtimeConfigPath string
	envFiles          []string
	logFormat         string
	logLevel          string
	stateDir          string
	strictExpiry      bool
)

var rootCmd = &cobra.Command{
	Use:   "chatapp",
	Short: "Chat client for the chat backend",
	Long: `chatapp signs in with the OIDC provider, reads and sends chat messages
and follows the live message feed.

Configuration is resolved from values built into the binary, then the runtime
config file, .env files and the VUE_APP_* environment variables.

Use "chatapp [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runtimeConfigPath, "runtime-config", "config.js", "Runtime configuration file (JSON or window.__CHATAPP_CONFIG__ script)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to read configuration from")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default $LOG_FORMAT or text)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory holding the stored session")
	rootCmd.PersistentFlags().BoolVar(&strictExpiry, "strict-expiry", false, "End the session when the access token expires and cannot be renewed")
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatapp")
}

// newApp builds the application from the persistent flags. The caller closes it.
func newApp(ctx context.Context, nav session.Navigator) *app.App {
	return app.New(ctx, app.Options{
		RuntimeConfigPath: runtimeConfigPath,
		EnvFiles:          envFiles,
		StateDir:          stateDir,
		LogFormat:         logFormat,
		LogLevel:          logLevel,
		Navigator:         nav,
		StrictExpiry:      strictExpiry,
	})
}
