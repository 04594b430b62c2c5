package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/transport"
	"github.com/nfrund/chatapp/internal/ui"
	"github.com/spf13/cobra"
)

// errNothingToSend is returned when the text is blank after trimming.
var errNothingToSend = errors.New("nothing to send")

var messagesJSON bool

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List the chat messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), nil)
		defer a.Close()

		client, err := a.Transport()
		if err != nil {
			return err
		}
		msgs, err := client.GetMessages(cmd.Context())
		if err != nil {
			return err
		}
		return printMessages(cmd.OutOrStdout(), msgs, messagesJSON)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text...>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), nil)
		defer a.Close()

		sessions, err := a.Sessions()
		if err != nil {
			return err
		}
		client, err := a.Transport()
		if err != nil {
			return err
		}
		receipt, err := sendText(cmd.Context(), client, sessions.GetUser(cmd.Context()).UserID(), strings.Join(args, " "), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", receipt.MessageID, receipt.Status)
		return nil
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the live message feed until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a := newApp(ctx, nil)
		defer a.Close()

		client, err := a.Transport()
		if err != nil {
			return err
		}
		sock, err := client.ConnectWebSocket(ctx)
		if err != nil {
			return err
		}
		return tail(ctx, sock, cmd.OutOrStdout())
	},
}

func init() {
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Print the messages as JSON")
	rootCmd.AddCommand(messagesCmd, sendCmd, tailCmd)
}

type messageSender interface {
	SendMessage(ctx context.Context, msg domain.Message) (*domain.Receipt, error)
}

// sendText runs text through the composer and sends what it emits.
func sendText(ctx context.Context, api messageSender, userID, text string, now time.Time) (*domain.Receipt, error) {
	var content string
	composer := ui.NewComposer("", func(s string) { content = s })
	composer.SetValue(text)
	if !composer.Submit() {
		return nil, errNothingToSend
	}
	return api.SendMessage(ctx, domain.Message{UserID: userID, Content: content, Timestamp: now.UTC()})
}

func printMessages(w io.Writer, msgs []domain.Message, asJSON bool) error {
	if asJSON {
		if msgs == nil {
			msgs = []domain.Message{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet")
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintln(w, formatMessage(m))
	}
	return nil
}

func formatMessage(m domain.Message) string {
	ts := "--:--:--"
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.Local().Format(time.TimeOnly)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, m.UserID, m.Content)
}

type liveSocket interface {
	Dispatch(l transport.Listener)
	Close() error
}

// tail prints socket events until the socket closes or ctx is cancelled.
func tail(ctx context.Context, sock liveSocket, w io.Writer) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = sock.Close()
		case <-done:
		}
	}()
	defer close(done)

	var closedUnclean bool
	sock.Dispatch(transport.Handlers{
		Open:    func() { fmt.Fprintln(w, "* connected") },
		Message: func(m domain.Message) { fmt.Fprintln(w, formatMessage(m)) },
		Error:   func(err error) { fmt.Fprintf(w, "* error: %v\n", err) },
		Close: func(code int, reason string, clean bool) {
			closedUnclean = !clean
			fmt.Fprintf(w, "* closed code=%d reason=%q clean=%t\n", code, reason, clean)
		},
	})
	if closedUnclean && ctx.Err() == nil {
		return fmt.Errorf("%w: live feed connection died", domain.ErrTransport)
	}
	return nil
}
