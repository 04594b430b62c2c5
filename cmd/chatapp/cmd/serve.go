package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local chat web UI",
	Long: `Serve the chat UI on a local address. The browser talks only to this
process, which holds the session and talks to the chat API and live feed.

The OIDC redirect URI must point at this server's /auth/callback route, e.g.
http://localhost:8080/auth/callback.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp(ctx, nil)
		defer a.Close()
		return a.Serve(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}
