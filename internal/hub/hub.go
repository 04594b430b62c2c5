// Package hub fans rendered HTML fragments out to connected browsers.
package hub

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Subscriber is one browser connection. The hub writes fragments to Send and
// closes it when the subscriber is dropped.
type Subscriber struct {
	ID     string
	UserID string
	Send   chan []byte
}

// NewSubscriber creates a subscriber whose queue holds buffer fragments.
func NewSubscriber(userID string, buffer int) *Subscriber {
	return &Subscriber{ID: uuid.NewString(), UserID: userID, Send: make(chan []byte, buffer)}
}

// Hub keeps the set of subscribers. All state is owned by Run.
type Hub struct {
	subscribers map[*Subscriber]struct{}

	broadcast  chan []byte
	register   chan *Subscriber
	unregister chan *Subscriber
	count      chan chan int
	done       chan struct{}

	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		broadcast:   make(chan []byte),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		count:       make(chan chan int),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Register adds s. It is a no-op once the hub has stopped.
func (h *Hub) Register(s *Subscriber) {
	select {
	case h.register <- s:
	case <-h.done:
		close(s.Send)
	}
}

// Unregister removes s and closes its queue.
func (h *Hub) Unregister(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Count reports the number of subscribers, or 0 once stopped.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Run serves the hub until ctx is cancelled, then closes every queue.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for s := range h.subscribers {
			close(s.Send)
			delete(h.subscribers, s)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			h.logger.Info("Browser subscribed", "subscriber", s.ID, "total_subscribers", len(h.subscribers))

		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.Send)
				h.logger.Info("Browser unsubscribed", "subscriber", s.ID, "total_subscribers", len(h.subscribers))
			}

		case reply := <-h.count:
			reply <- len(h.subscribers)

		case msg := <-h.broadcast:
			h.logger.Debug("Broadcasting fragment", "recipient_count", len(h.subscribers))
			for s := range h.subscribers {
				select {
				case s.Send <- msg:
				default:
					// A full queue means the browser stopped reading.
					close(s.Send)
					delete(h.subscribers, s)
					h.logger.Warn("Dropping slow subscriber", "subscriber", s.ID, "total_subscribers", len(h.subscribers))
				}
			}
		}
	}
}
