// Package pubsub is the in-process bus between the live feed and the web UI.
package pubsub

import (
	"context"
)

// Message travels on the bus.
type Message struct {
	// Topic is the channel name, e.g. "chat.messages.received".
	Topic string
	// UserID is the session the message belongs to, if any.
	UserID string
	// Payload is JSON.
	Payload  []byte
	Metadata map[string]string
}

// Handler processes one delivered message. A non-nil error nacks it.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Subscriber interface {
	// Subscribe registers handler for topic and returns once the
	// subscription is live. Delivery stops when ctx is cancelled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is both ends.
type Bus interface {
	Publisher
	Subscriber
}
