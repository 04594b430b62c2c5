package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/identity"
	"github.com/nfrund/chatapp/internal/logging"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/nfrund/chatapp/internal/testutils"
	"github.com/nfrund/chatapp/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []domain.Message
}

func (r *recordingSender) SendMessage(ctx context.Context, msg domain.Message) (*domain.Receipt, error) {
	r.sent = append(r.sent, msg)
	return &domain.Receipt{MessageID: "m-1", Status: "sent"}, nil
}

func TestSendText(t *testing.T) {
	t.Run("blank text sends nothing", func(t *testing.T) {
		var api recordingSender
		_, err := sendText(context.Background(), &api, "alice", "  \t ", time.Now())
		assert.ErrorIs(t, err, errNothingToSend)
		assert.Empty(t, api.sent)
	})

	t.Run("sends trimmed content", func(t *testing.T) {
		var api recordingSender
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		receipt, err := sendText(context.Background(), &api, "alice", "  hi there ", now)
		require.NoError(t, err)
		assert.Equal(t, "m-1", receipt.MessageID)
		require.Len(t, api.sent, 1)
		assert.Equal(t, domain.Message{UserID: "alice", Content: "hi there", Timestamp: now}, api.sent[0])
	})
}

func TestPrintMessages(t *testing.T) {
	msgs := []domain.Message{
		{MessageID: "1", UserID: "alice", Content: "first"},
		{MessageID: "2", UserID: "bob", Content: "second"},
	}

	var out bytes.Buffer
	require.NoError(t, printMessages(&out, msgs, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[--:--:--] alice: first", lines[0])
	assert.Equal(t, "[--:--:--] bob: second", lines[1])

	out.Reset()
	require.NoError(t, printMessages(&out, nil, false))
	assert.Equal(t, "No messages yet\n", out.String())

	out.Reset()
	require.NoError(t, printMessages(&out, nil, true))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	require.NoError(t, printMessages(&out, msgs, true))
	assert.Contains(t, out.String(), `"message_id": "1"`)
}

type scriptedSocket struct {
	events []transport.Event
	closed bool
}

func (s *scriptedSocket) Dispatch(l transport.Listener) {
	for _, ev := range s.events {
		switch ev.Kind {
		case transport.EventOpen:
			l.OnOpen()
		case transport.EventMessage:
			l.OnMessage(ev.Message)
		case transport.EventError:
			l.OnError(ev.Err)
		case transport.EventClose:
			l.OnClose(ev.Code, ev.Reason, ev.Clean)
		}
	}
}

func (s *scriptedSocket) Close() error {
	s.closed = true
	return nil
}

func TestTail(t *testing.T) {
	t.Run("clean close", func(t *testing.T) {
		sock := &scriptedSocket{events: []transport.Event{
			{Kind: transport.EventOpen},
			{Kind: transport.EventMessage, Message: domain.Message{UserID: "bob", Content: "hey"}},
			{Kind: transport.EventClose, Code: 1000, Reason: "bye", Clean: true},
		}}
		var out bytes.Buffer
		require.NoError(t, tail(context.Background(), sock, &out))
		assert.Contains(t, out.String(), "* connected")
		assert.Contains(t, out.String(), "bob: hey")
		assert.Contains(t, out.String(), `* closed code=1000 reason="bye" clean=true`)
	})

	t.Run("died", func(t *testing.T) {
		sock := &scriptedSocket{events: []transport.Event{
			{Kind: transport.EventOpen},
			{Kind: transport.EventError, Err: domain.ErrTransport},
			{Kind: transport.EventClose, Code: 1006},
		}}
		var out bytes.Buffer
		err := tail(context.Background(), sock, &out)
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Contains(t, out.String(), "* error:")
	})
}

func smokeServer(t *testing.T, apiStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	})
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`window.__CHATAPP_CONFIG__ = {"VUE_APP_DEX_ISSUER_URL": "https://ingress.local/dex"};`))
	})
	mux.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(apiStatus)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSmoke(t *testing.T) {
	t.Run("anonymous calls are rejected", func(t *testing.T) {
		srv := smokeServer(t, http.StatusUnauthorized)
		report, err := runSmoke(context.Background(), smokeClient(false), srv.URL+"/")
		require.NoError(t, err)
		assert.True(t, report.OK)
		require.Len(t, report.Steps, 3)
		assert.True(t, *report.Steps[0].ContainsAppDiv)
		assert.True(t, *report.Steps[1].HasIssuer)
		assert.Equal(t, http.StatusUnauthorized, report.Steps[2].Status)
	})

	t.Run("open API fails the check", func(t *testing.T) {
		srv := smokeServer(t, http.StatusOK)
		report, err := runSmoke(context.Background(), smokeClient(false), srv.URL)
		require.NoError(t, err)
		assert.False(t, report.OK)
	})

	t.Run("unreachable environment", func(t *testing.T) {
		_, err := runSmoke(context.Background(), smokeClient(false), "http://127.0.0.1:1")
		require.Error(t, err)
	})
}

func TestCompleteLogin(t *testing.T) {
	p := testutils.NewProvider(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	redirectURI := "http://" + ln.Addr().String() + "/callback"

	store := identity.NewMemoryStore()
	client, err := identity.NewClient(context.Background(), identity.Settings{
		Authority:   p.Issuer(),
		ClientID:    p.ClientID,
		RedirectURI: redirectURI,
		Scopes:      []string{"openid", "profile"},
	}, store, identity.WithLogger(logging.Discard()), identity.InsecureSkipSignatureCheck())
	require.NoError(t, err)

	// The navigator plays the browser and follows the provider's redirect to the listener.
	browserErr := make(chan error, 1)
	nav := session.NavigatorFunc(func(ctx context.Context, target string) error {
		go func() {
			resp, err := http.Get(target)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					err = errors.New(resp.Status)
				}
			}
			browserErr <- err
		}()
		return nil
	})
	sessions := session.NewManager(client, session.UseNavigator(nav), session.WithLogger(logging.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := completeLogin(ctx, sessions, ln, "/callback")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.UserID())
	require.NoError(t, <-browserErr)

	u, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, u)
}

func TestCompleteLogin_Timeout(t *testing.T) {
	p := testutils.NewProvider(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	client, err := identity.NewClient(context.Background(), identity.Settings{
		Authority:   p.Issuer(),
		ClientID:    p.ClientID,
		RedirectURI: "http://" + ln.Addr().String() + "/callback",
	}, identity.NewMemoryStore(), identity.WithLogger(logging.Discard()))
	require.NoError(t, err)
	nav := session.NavigatorFunc(func(ctx context.Context, target string) error { return nil })
	sessions := session.NewManager(client, session.UseNavigator(nav), session.WithLogger(logging.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = completeLogin(ctx, sessions, ln, "/callback")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "chatapp v"+version+"\n", out.String())
}
