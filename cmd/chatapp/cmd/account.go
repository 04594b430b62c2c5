package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/spf13/cobra"
)

var (
	logoutNoBrowser bool
	whoamiJSON      bool
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		nav := session.BrowserNavigator{Out: cmd.OutOrStdout(), NoBrowser: logoutNoBrowser}
		a := newApp(cmd.Context(), nav)
		defer a.Close()

		sessions, err := a.Sessions()
		if err != nil {
			return err
		}
		if err := sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), nil)
		defer a.Close()

		sessions, err := a.Sessions()
		if err != nil {
			return err
		}
		sess := sessions.GetUser(cmd.Context())
		if sess == nil {
			return fmt.Errorf("%w: run chatapp login", domain.ErrAuthenticationRequired)
		}

		if whoamiJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"user_id": sess.UserID(),
				"expired": sess.Expired,
				"profile": sess.Profile,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeSession(sess))
		return nil
	},
}

func describeSession(sess *session.Session) string {
	state := "active"
	switch {
	case sess.Expired && sess.RefreshToken != "":
		state = "expired, renews on next use"
	case sess.Expired:
		state = "expired"
	}
	return fmt.Sprintf("%s (%s)", sess.UserID(), state)
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutNoBrowser, "no-browser", false, "Print the provider logout URL instead of opening a browser")
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Print the session as JSON")
	rootCmd.AddCommand(logoutCmd, whoamiCmd)
}
