package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/nfrund/chatapp/internal/config"
	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/logging"
	"github.com/nfrund/chatapp/internal/pubsub"
	"github.com/nfrund/chatapp/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) GetAccessToken(ctx context.Context) (string, error) { return "tok", nil }
func (staticTokens) ForceLogout(ctx context.Context, reason string) error { return nil }

func TestFeedPublishesSocketEvents(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Write(r.Context(), cws.MessageText, []byte(`{"user_id":"bob","content":"live","timestamp":"2030-01-01T00:00:00Z"}`))
		<-release
		conn.Close(cws.StatusNormalClosure, "done")
	}))
	defer srv.Close()

	cfg, err := config.Resolve(nil, config.Source{
		config.KeyIssuerURL:  "https://idp.example",
		config.KeyAPIBaseURL: srv.URL,
		config.KeyWSURL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	require.NoError(t, err)
	client := transport.New(cfg, staticTokens{}, transport.WithLogger(logging.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := pubsub.NewWatermillBridge(logging.Discard())
	defer bus.Close()

	messages := make(chan domain.Message, 4)
	statuses := make(chan Status, 8)
	require.NoError(t, pubsub.Subscribe(ctx, bus, MessagesReceived, func(ctx context.Context, userID string, m domain.Message) error {
		assert.Equal(t, "alice", userID)
		messages <- m
		return nil
	}))
	require.NoError(t, pubsub.Subscribe(ctx, bus, ConnectionStatus, func(ctx context.Context, userID string, s Status) error {
		statuses <- s
		return nil
	}))

	f := New(client, bus, logging.Discard())
	require.NoError(t, f.Start(ctx, "alice"))
	require.NoError(t, f.Start(ctx, "alice"), "second start reuses the socket")
	assert.True(t, f.Running())

	select {
	case m := <-messages:
		assert.Equal(t, "live", m.Content)
	case <-time.After(3 * time.Second):
		t.Fatal("message not published")
	}
	assert.Equal(t, StateOpen, (<-statuses).State)

	close(release)
	select {
	case s := <-statuses:
		assert.Equal(t, StateClosed, s.State)
		assert.True(t, s.Clean)
		assert.Equal(t, "done", s.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("close not published")
	}

	assert.Eventually(t, func() bool { return !f.Running() }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, f.Stop())
}
