package ui

import (
	"strings"

	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"

	"golang.org/x/text/unicode/norm"
)

// Composer is the message input. Submit emits trimmed content through OnSend
// at most once and clears the input; blank input emits nothing.
type Composer struct {
	ChatID string
	OnSend func(content string)

	value string
}

func NewComposer(chatID string, onSend func(string)) *Composer {
	return &Composer{ChatID: chatID, OnSend: onSend}
}

// SetValue sets the input text.
func (c *Composer) SetValue(v string) {
	c.value = v
}

// Value is the current input text.
func (c *Composer) Value() string {
	return c.value
}

// Submit emits the input and reports whether anything was sent.
func (c *Composer) Submit() bool {
	content := Normalize(c.value)
	if content == "" {
		return false
	}
	if c.OnSend != nil {
		c.OnSend(content)
	}
	c.value = ""
	return true
}

// Normalize trims surrounding whitespace and applies NFC so visually equal
// messages are byte-equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Node renders the composer form. The server answers a post with a fresh
// composer, which is how the input gets cleared in the browser.
func (c *Composer) Node() g.Node {
	return FormEl(
		ID("composer"),
		Class("flex gap-2 border-t p-4"),
		hx.Post("/chat/messages"),
		hx.Swap("outerHTML"),
		Input(Type("hidden"), Name("chat_id"), Value(c.ChatID)),
		Input(
			Type("text"),
			Name("content"),
			Value(c.value),
			Placeholder("Type a message..."),
			AutoComplete("off"),
			AutoFocus(),
			Class("flex-1 rounded border px-3 py-2"),
		),
		Button(Type("submit"), Class("rounded bg-indigo-600 px-4 py-2 text-white"), g.Text("Send")),
	)
}
