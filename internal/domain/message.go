package domain

import "time"

// Message is a single chat message as exchanged with the API and the socket.
type Message struct {
	MessageID string    `json:"message_id,omitempty"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Receipt is the confirmation the API returns for an accepted message.
type Receipt struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}
