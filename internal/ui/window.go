package ui

import (
	"time"

	"github.com/nfrund/chatapp/internal/domain"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

// ChatWindow renders a chat's history in received order.
func ChatWindow(chat *Chat) g.Node {
	return chatWindow(chat, false)
}

// ChatWindowSwap is ChatWindow marked for an out-of-band swap.
func ChatWindowSwap(chat *Chat) g.Node {
	return chatWindow(chat, true)
}

func chatWindow(chat *Chat, oob bool) g.Node {
	name := ""
	var messages []domain.Message
	if chat != nil {
		name = chat.Name
		messages = chat.Messages
	}

	return Section(
		ID("chat-window"),
		g.If(oob, hx.SwapOOB("true")),
		Class("flex-1 flex flex-col"),
		H2(Class("p-4 text-xl font-semibold border-b"), g.Text(name)),
		Div(
			ID("chat-messages"),
			Class("flex-1 overflow-y-auto p-4 space-y-2"),
			g.If(len(messages) == 0, emptyState()),
			g.Map(messages, MessageItem),
		),
	)
}

func emptyState() g.Node {
	return P(ID("empty-state"), Class("text-gray-400 text-center"), g.Text("No messages yet"))
}

// MessageItem renders one message.
func MessageItem(m domain.Message) g.Node {
	return Div(
		Class("rounded bg-white p-2 shadow"),
		g.If(m.MessageID != "", Data("message-id", m.MessageID)),
		Div(
			Class("text-sm text-gray-500"),
			Span(Class("font-bold text-gray-800"), g.Text(m.UserID)),
			g.If(!m.Timestamp.IsZero(),
				g.El("time", Class("ml-2"), g.Attr("datetime", m.Timestamp.Format(time.RFC3339)), g.Text(m.Timestamp.Local().Format("15:04"))),
			),
		),
		P(g.Text(m.Content)),
	)
}

// LiveMessage is the out-of-band fragment pushed to browsers when a message
// arrives on the socket. It also drops the empty-state placeholder.
func LiveMessage(m domain.Message) g.Node {
	return g.Group{
		Div(hx.SwapOOB("beforeend:#chat-messages"), MessageItem(m)),
		Div(ID("empty-state"), hx.SwapOOB("delete")),
	}
}

// ConnectionStatus is the out-of-band fragment for the live feed indicator.
func ConnectionStatus(state string) g.Node {
	return Span(
		ID("connection-status"),
		hx.SwapOOB("true"),
		Class("text-xs text-gray-400"),
		g.Text(state),
	)
}
