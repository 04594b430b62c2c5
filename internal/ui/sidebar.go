package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

// Chat is one conversation in the sidebar.
type Chat struct {
	ID           string
	Name         string
	Messages     []domain.Message
	UnreadCount  int
	LastActivity time.Time
}

// Sidebar lists chats, most recently active first.
type Sidebar struct {
	chats    []Chat
	ActiveID string
}

func NewSidebar(chats []Chat, activeID string) *Sidebar {
	s := &Sidebar{ActiveID: activeID}
	s.SetChats(chats)
	return s
}

// SetChats replaces the chat collection and recomputes the order.
func (s *Sidebar) SetChats(chats []Chat) {
	sorted := make([]Chat, len(chats))
	copy(sorted, chats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastActivity.After(sorted[j].LastActivity)
	})
	s.chats = sorted
}

// Chats returns the chats in display order.
func (s *Sidebar) Chats() []Chat {
	return s.chats
}

// Find returns the chat with id, or nil.
func (s *Sidebar) Find(id string) *Chat {
	for i := range s.chats {
		if s.chats[i].ID == id {
			return &s.chats[i]
		}
	}
	return nil
}

// Node renders the sidebar. Clicking an entry asks the server to select it.
func (s *Sidebar) Node() g.Node {
	return Aside(
		ID("sidebar"),
		Class("w-64 bg-gray-900 text-gray-100 flex flex-col"),
		H2(Class("p-4 text-lg font-bold border-b border-gray-700"), g.Text("Chats")),
		Ul(
			Class("flex-1 overflow-y-auto"),
			g.Map(s.chats, func(c Chat) g.Node {
				return s.entry(c)
			}),
		),
	)
}

func (s *Sidebar) entry(c Chat) g.Node {
	return Li(
		Class("cursor-pointer px-4 py-3 hover:bg-gray-800"),
		g.If(c.ID == s.ActiveID, Class("bg-gray-800 font-semibold")),
		Data("chat-id", c.ID),
		hx.Get("/chats/"+c.ID),
		hx.Target("#sidebar"),
		hx.Swap("outerHTML"),
		Span(g.Text(c.Name)),
		g.If(c.UnreadCount > 0,
			Span(Class("ml-2 rounded-full bg-indigo-600 px-2 text-xs"), g.Text(fmt.Sprint(c.UnreadCount))),
		),
	)
}
