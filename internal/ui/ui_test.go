package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
)

func render(t *testing.T, n g.Node) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, n.Render(&b))
	return b.String()
}

func TestComposer(t *testing.T) {
	t.Run("emits trimmed content once and clears", func(t *testing.T) {
		var sent []string
		c := NewComposer("general", func(s string) { sent = append(sent, s) })
		c.SetValue("  Hello ")

		assert.True(t, c.Submit())
		assert.Equal(t, []string{"Hello"}, sent)
		assert.Equal(t, "", c.Value())

		assert.False(t, c.Submit(), "cleared input sends nothing")
		assert.Len(t, sent, 1)
	})

	t.Run("blank input emits nothing", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\t\n"} {
			var sent []string
			c := NewComposer("general", func(s string) { sent = append(sent, s) })
			c.SetValue(in)
			assert.False(t, c.Submit())
			assert.Empty(t, sent)
		}
	})

	t.Run("normalizes to NFC", func(t *testing.T) {
		var got string
		c := NewComposer("general", func(s string) { got = s })
		c.SetValue(" cafe\u0301 ")
		c.Submit()
		assert.Equal(t, "caf\u00e9", got)
	})

	t.Run("renders an htmx form", func(t *testing.T) {
		c := NewComposer("general", nil)
		c.SetValue("draft")
		html := render(t, c.Node())
		assert.Contains(t, html, `hx-post="/chat/messages"`)
		assert.Contains(t, html, `name="content"`)
		assert.Contains(t, html, `value="draft"`)
		assert.Contains(t, html, `value="general"`)
	})
}

func TestSidebar(t *testing.T) {
	now := time.Now()
	chat := func(id string, minsAgo int) Chat {
		return Chat{ID: id, Name: "Chat " + id, LastActivity: now.Add(-time.Duration(minsAgo) * time.Minute)}
	}

	t.Run("orders by most recent activity", func(t *testing.T) {
		s := NewSidebar([]Chat{chat("1", 10), chat("2", 1), chat("3", 30)}, "1")
		assert.Equal(t, []string{"2", "1", "3"}, ids(s.Chats()))
	})

	t.Run("reorders when the chats change", func(t *testing.T) {
		s := NewSidebar([]Chat{chat("1", 10), chat("2", 1)}, "1")
		s.SetChats([]Chat{chat("1", 0), chat("2", 1), chat("3", 5)})
		assert.Equal(t, []string{"1", "2", "3"}, ids(s.Chats()))
	})

	t.Run("entries select the chat", func(t *testing.T) {
		s := NewSidebar([]Chat{chat("1", 5)}, "1")
		html := render(t, s.Node())
		assert.Contains(t, html, "cursor-pointer")
		assert.Contains(t, html, `hx-get="/chats/1"`)
		assert.NotNil(t, s.Find("1"))
		assert.Nil(t, s.Find("missing"))
	})
}

func ids(chats []Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func TestChatWindow(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		html := render(t, ChatWindow(&Chat{Name: "General Chat"}))
		assert.Contains(t, html, "No messages yet")
	})

	t.Run("renders messages in order", func(t *testing.T) {
		ts := time.Now()
		html := render(t, ChatWindow(&Chat{Name: "General Chat", Messages: []domain.Message{
			{UserID: "alice", Content: "Hello", Timestamp: ts},
			{UserID: "bob", Content: "Hi", Timestamp: ts},
		}}))
		assert.NotContains(t, html, "No messages yet")
		require.Contains(t, html, "Hello")
		assert.Less(t, strings.Index(html, "Hello"), strings.Index(html, "Hi<"))
	})

	t.Run("content is escaped", func(t *testing.T) {
		html := render(t, MessageItem(domain.Message{UserID: "eve", Content: "<script>x</script>"}))
		assert.NotContains(t, html, "<script>")
	})

	t.Run("live fragments swap out of band", func(t *testing.T) {
		html := render(t, LiveMessage(domain.Message{UserID: "bob", Content: "pushed"}))
		assert.Contains(t, html, `hx-swap-oob="beforeend:#chat-messages"`)
		assert.Contains(t, html, `hx-swap-oob="delete"`)
	})
}

func TestAppPage(t *testing.T) {
	general := Chat{ID: "general", Name: "General Chat", Messages: []domain.Message{
		{UserID: "alice", Content: "hello from backend", Timestamp: time.Now()},
	}}
	html := render(t, AppPage(PageData{
		UserID:   "alice",
		Flashes:  Flashes{Error: []string{"Failed to fetch messages"}},
		Sidebar:  NewSidebar([]Chat{general}, "general"),
		Active:   &general,
		Composer: NewComposer("general", nil),
	}))

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, "General Chat")
	assert.Contains(t, html, "hello from backend")
	assert.Contains(t, html, `ws-connect="/ws"`)
	assert.Contains(t, html, "Failed to fetch messages")
	assert.Contains(t, html, `href="/auth/logout"`)
}

func TestSignedOutPage(t *testing.T) {
	html := render(t, SignedOutPage(Flashes{Error: []string{"Login failed"}}))
	assert.Contains(t, html, "You are signed out")
	assert.Contains(t, html, "Login failed")
	assert.Contains(t, html, `href="/auth/login"`)
}

func TestLoginResultPage(t *testing.T) {
	html := render(t, LoginResultPage("alice", nil))
	assert.Contains(t, html, "Signed in as alice")

	html = render(t, LoginResultPage("", errors.New("identity: unknown or expired state")))
	assert.Contains(t, html, "Login failed")
	assert.Contains(t, html, "unknown or expired state")
}

func TestChatWindowSwap(t *testing.T) {
	html := render(t, ChatWindowSwap(&Chat{Name: "General Chat"}))
	assert.Contains(t, html, `id="chat-window"`)
	assert.Contains(t, html, `hx-swap-oob="true"`)
}
