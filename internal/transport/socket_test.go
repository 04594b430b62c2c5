package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/nfrund/chatapp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func collect(t *testing.T, s *Socket) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("socket did not finish")
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestConnectWebSocket(t *testing.T) {
	ctx := context.Background()

	t.Run("no session makes no connection", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, wsURL(srv), &fakeTokens{}).ConnectWebSocket(ctx)
		assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
		assert.Zero(t, hits.Load())
	})

	t.Run("delivers frames then a clean close", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("token") != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			conn, err := cws.Accept(w, r, nil)
			if err != nil {
				return
			}
			conn.Write(r.Context(), cws.MessageText, []byte(`{"user_id":"bob","content":"hi","timestamp":"2030-01-01T00:00:00Z"}`))
			conn.Write(r.Context(), cws.MessageText, []byte(`not json`))
			conn.Write(r.Context(), cws.MessageText, []byte(`{"user_id":"bob","content":"still here","timestamp":"2030-01-01T00:00:01Z"}`))
			conn.Close(cws.StatusNormalClosure, "bye")
		}))
		defer srv.Close()

		s, err := newTestClient(t, srv.URL, wsURL(srv), &fakeTokens{token: "tok"}).ConnectWebSocket(ctx)
		require.NoError(t, err)
		defer s.Close()

		events := collect(t, s)
		require.Equal(t, []EventKind{EventOpen, EventMessage, EventError, EventMessage, EventClose}, kinds(events))
		assert.Equal(t, "hi", events[1].Message.Content)
		assert.ErrorIs(t, events[2].Err, domain.ErrTransport)
		assert.Equal(t, "still here", events[3].Message.Content)

		closed := events[4]
		assert.True(t, closed.Clean)
		assert.Equal(t, 1000, closed.Code)
		assert.Equal(t, "bye", closed.Reason)
	})

	t.Run("dropped connection is unclean", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := cws.Accept(w, r, nil)
			if err != nil {
				return
			}
			conn.CloseNow()
		}))
		defer srv.Close()

		s, err := newTestClient(t, srv.URL, wsURL(srv), &fakeTokens{token: "tok"}).ConnectWebSocket(ctx)
		require.NoError(t, err)
		defer s.Close()

		events := collect(t, s)
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, EventClose, last.Kind)
		assert.False(t, last.Clean)
		assert.Equal(t, 1006, last.Code)
		assert.ErrorIs(t, last.Err, domain.ErrTransport)
	})

	t.Run("rejected handshake forces logout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		tokens := &fakeTokens{token: "tok"}
		_, err := newTestClient(t, srv.URL, wsURL(srv), tokens).ConnectWebSocket(ctx)
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
		assert.EqualValues(t, 1, tokens.logouts.Load())
	})

	t.Run("dispatch calls the named handlers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := cws.Accept(w, r, nil)
			if err != nil {
				return
			}
			conn.Write(r.Context(), cws.MessageText, []byte(`{"user_id":"bob","content":"hi","timestamp":"2030-01-01T00:00:00Z"}`))
			conn.Close(cws.StatusGoingAway, "restart")
		}))
		defer srv.Close()

		s, err := newTestClient(t, srv.URL, wsURL(srv), &fakeTokens{token: "tok"}).ConnectWebSocket(ctx)
		require.NoError(t, err)
		defer s.Close()

		var calls []string
		s.Dispatch(Handlers{
			Open:    func() { calls = append(calls, "open") },
			Message: func(m domain.Message) { calls = append(calls, "message:"+m.Content) },
			Error:   func(err error) { calls = append(calls, "error") },
			Close: func(code int, reason string, clean bool) {
				assert.Equal(t, 1001, code)
				assert.True(t, clean)
				calls = append(calls, "close:"+reason)
			},
		})
		assert.Equal(t, []string{"open", "message:hi", "close:restart"}, calls)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := cws.Accept(w, r, nil)
			if err != nil {
				return
			}
			defer conn.CloseNow()
			conn.Read(r.Context())
		}))
		defer srv.Close()

		s, err := newTestClient(t, srv.URL, wsURL(srv), &fakeTokens{token: "tok"}).ConnectWebSocket(ctx)
		require.NoError(t, err)
		go func() {
			for range s.Events() {
			}
		}()
		s.Close()
		assert.NoError(t, s.Close())
		<-s.Done()
	})
}
