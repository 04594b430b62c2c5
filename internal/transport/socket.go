package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/chatapp/internal/domain"
)

const (
	// closeAbnormal mirrors the browser's 1006 for a connection that ended
	// without a close frame.
	closeAbnormal = websocket.CloseAbnormalClosure
	closeGrace    = 2 * time.Second
	eventBuffer   = 64
)

// EventKind names the four socket lifecycle reactions.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one thing that happened on the socket. Message is set for
// EventMessage, Err for EventError, and Code, Reason and Clean for EventClose.
type Event struct {
	Kind    EventKind
	Message domain.Message
	Err     error
	Code    int
	Reason  string
	Clean   bool
}

// Listener receives socket events through Dispatch.
type Listener interface {
	OnOpen()
	OnMessage(msg domain.Message)
	OnError(err error)
	OnClose(code int, reason string, clean bool)
}

// Handlers is a Listener built from optional functions.
type Handlers struct {
	Open    func()
	Message func(domain.Message)
	Error   func(error)
	Close   func(code int, reason string, clean bool)
}

func (h Handlers) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h Handlers) OnMessage(msg domain.Message) {
	if h.Message != nil {
		h.Message(msg)
	}
}

func (h Handlers) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h Handlers) OnClose(code int, reason string, clean bool) {
	if h.Close != nil {
		h.Close(code, reason, clean)
	}
}

// Socket is a receive-only live message connection. It never reconnects;
// the caller owns Close.
type Socket struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// ConnectWebSocket opens the live feed with the access token as the token
// query parameter.
func (c *Client) ConnectWebSocket(ctx context.Context) (*Socket, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if c.wsURL == "" {
		return nil, fmt.Errorf("%w: no WebSocket URL configured", domain.ErrConfiguration)
	}

	target, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse WebSocket URL: %w", domain.ErrConfiguration, err)
	}
	q := target.Query()
	q.Set("token", token)
	target.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.expire(ctx, "connect websocket")
			return nil, fmt.Errorf("%w: websocket handshake rejected the token", domain.ErrSessionExpired)
		}
		return nil, fmt.Errorf("%w: dial websocket: %w", domain.ErrTransport, err)
	}

	s := &Socket{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go s.readLoop()
	return s, nil
}

// Events returns the event stream. It starts with EventOpen, ends with
// exactly one EventClose and is then closed. It must be drained.
func (s *Socket) Events() <-chan Event {
	return s.events
}

// Dispatch feeds every event to l until the socket has closed.
func (s *Socket) Dispatch(l Listener) {
	for ev := range s.events {
		switch ev.Kind {
		case EventOpen:
			l.OnOpen()
		case EventMessage:
			l.OnMessage(ev.Message)
		case EventError:
			l.OnError(ev.Err)
		case EventClose:
			l.OnClose(ev.Code, ev.Reason, ev.Clean)
		}
	}
}

// Done is closed once the read loop has finished.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Close starts the close handshake and waits briefly for the peer before
// dropping the connection. Calling it more than once is safe.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil {
			s.logger.Debug("Could not send close frame", "error", werr)
		}
		select {
		case <-s.done:
		case <-time.After(closeGrace):
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Socket) readLoop() {
	defer close(s.done)
	defer close(s.events)

	s.logger.Info("WebSocket connection established.")
	s.events <- Event{Kind: EventOpen}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.events <- s.closeEvent(err)
			return
		}

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			perr := fmt.Errorf("%w: invalid frame: %w", domain.ErrTransport, err)
			s.logger.Error("WebSocket error", "error", perr)
			s.events <- Event{Kind: EventError, Err: perr}
			continue
		}
		s.events <- Event{Kind: EventMessage, Message: msg}
	}
}

func (s *Socket) closeEvent(err error) Event {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != closeAbnormal {
		s.logger.Info(fmt.Sprintf("WebSocket connection closed cleanly, code=%d reason=%s", ce.Code, ce.Text))
		return Event{Kind: EventClose, Code: ce.Code, Reason: ce.Text, Clean: true}
	}
	terr := fmt.Errorf("%w: %w", domain.ErrTransport, err)
	s.logger.Error("WebSocket error", "error", terr)
	s.events <- Event{Kind: EventError, Err: terr}
	s.logger.Error("WebSocket connection died")
	return Event{Kind: EventClose, Code: closeAbnormal, Err: terr}
}
