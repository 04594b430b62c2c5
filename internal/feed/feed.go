// Package feed bridges the live message socket onto the in-process bus.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/pubsub"
	"github.com/nfrund/chatapp/internal/transport"
)

// Connection states published on ConnectionStatus.
const (
	StateOpen   = "open"
	StateError  = "error"
	StateClosed = "closed"
)

var (
	MessagesReceived = pubsub.NewEvent[domain.Message]("chat.messages.received")
	ConnectionStatus = pubsub.NewEvent[Status]("chat.connection.status")
)

// Status describes the socket's state.
type Status struct {
	State  string `json:"state"`
	Code   int    `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
	Clean  bool   `json:"clean,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Connector opens the live socket. *transport.Client implements it.
type Connector interface {
	ConnectWebSocket(ctx context.Context) (*transport.Socket, error)
}

// Feed keeps at most one socket open and republishes what it receives.
// It does not reconnect; Start has to be called again after a close.
type Feed struct {
	conn   Connector
	pub    pubsub.Publisher
	logger *slog.Logger

	mu     sync.Mutex
	socket *transport.Socket
}

func New(conn Connector, pub pubsub.Publisher, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{conn: conn, pub: pub, logger: logger}
}

// Start opens the socket for userID unless one is already running.
func (f *Feed) Start(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.socket != nil {
		return nil
	}

	s, err := f.conn.ConnectWebSocket(ctx)
	if err != nil {
		return err
	}
	f.socket = s
	go f.run(s, userID)
	return nil
}

func (f *Feed) run(s *transport.Socket, userID string) {
	s.Dispatch(&publisher{feed: f, userID: userID})

	f.mu.Lock()
	if f.socket == s {
		f.socket = nil
	}
	f.mu.Unlock()
}

// Running reports whether a socket is open.
func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.socket != nil
}

// Stop closes the current socket, if any.
func (f *Feed) Stop() error {
	f.mu.Lock()
	s := f.socket
	f.mu.Unlock()
	if s == nil {
		return nil
	}
	err := s.Close()
	<-s.Done()
	return err
}

// publisher is the socket listener that feeds the bus.
type publisher struct {
	feed   *Feed
	userID string
}

func (p *publisher) OnOpen() {
	p.status(Status{State: StateOpen})
}

func (p *publisher) OnMessage(msg domain.Message) {
	if err := pubsub.Publish(context.Background(), p.feed.pub, MessagesReceived, p.userID, msg); err != nil {
		p.feed.logger.Error("Failed to publish message", "error", err)
	}
}

func (p *publisher) OnError(err error) {
	p.status(Status{State: StateError, Error: err.Error()})
}

func (p *publisher) OnClose(code int, reason string, clean bool) {
	p.status(Status{State: StateClosed, Code: code, Reason: reason, Clean: clean})
}

func (p *publisher) status(s Status) {
	if err := pubsub.Publish(context.Background(), p.feed.pub, ConnectionStatus, p.userID, s); err != nil {
		p.feed.logger.Error("Failed to publish connection status", "state", s.State, "error", err)
	}
}
