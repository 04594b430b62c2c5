package web

import (
	"sync"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/ui"
)

// GeneralChatID is the chat holding the API's message collection.
const GeneralChatID = "general"

// ChatState is the chats the local UI shows. Messages are only appended.
type ChatState struct {
	mu     sync.RWMutex
	chats  []ui.Chat
	active string
	now    func() time.Time
}

func NewChatState(now func() time.Time) *ChatState {
	if now == nil {
		now = time.Now
	}
	return &ChatState{
		chats:  []ui.Chat{{ID: GeneralChatID, Name: "General Chat", LastActivity: now()}},
		active: GeneralChatID,
		now:    now,
	}
}

// Load replaces the general chat's history with msgs.
func (s *ChatState) Load(msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := s.findLocked(GeneralChatID)
	chat.Messages = append([]domain.Message(nil), msgs...)
	chat.LastActivity = s.lastActivity(msgs)
}

// Append adds a live message to the general chat. Messages for a chat that
// is not open count as unread.
func (s *ChatState) Append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := s.findLocked(GeneralChatID)
	chat.Messages = append(chat.Messages, msg)
	chat.LastActivity = s.lastActivity([]domain.Message{msg})
	if s.active != chat.ID {
		chat.UnreadCount++
	}
}

// Select makes id the open chat and clears its unread count.
func (s *ChatState) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := s.findLocked(id)
	if chat == nil {
		return false
	}
	chat.UnreadCount = 0
	s.active = id
	return true
}

// Snapshot copies the state for rendering.
func (s *ChatState) Snapshot() (*ui.Sidebar, *ui.Chat) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]ui.Chat, len(s.chats))
	for i, c := range s.chats {
		c.Messages = append([]domain.Message(nil), c.Messages...)
		chats[i] = c
	}
	sidebar := ui.NewSidebar(chats, s.active)
	return sidebar, sidebar.Find(s.active)
}

func (s *ChatState) findLocked(id string) *ui.Chat {
	for i := range s.chats {
		if s.chats[i].ID == id {
			return &s.chats[i]
		}
	}
	return nil
}

func (s *ChatState) lastActivity(msgs []domain.Message) time.Time {
	if n := len(msgs); n > 0 && !msgs[n-1].Timestamp.IsZero() {
		return msgs[n-1].Timestamp
	}
	return s.now()
}
