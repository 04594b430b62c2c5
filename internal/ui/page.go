// Package ui renders the chat client's components with gomponents and htmx.
package ui

import (
	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

const (
	htmxScript   = "https://unpkg.com/htmx.org@2.0.4"
	htmxWSScript = "https://unpkg.com/htmx-ext-ws@2.0.2/ws.js"
)

// Flashes are one-shot notices shown above the chat.
type Flashes struct {
	Success []string
	Error   []string
}

// PageData is everything the App page shows.
type PageData struct {
	Title    string
	UserID   string
	Flashes  Flashes
	Sidebar  *Sidebar
	Active   *Chat
	Composer *Composer
}

// AppPage is the full document: header, sidebar, chat window and composer,
// with the htmx websocket extension attached to the live feed.
func AppPage(data PageData) g.Node {
	title := data.Title
	if title == "" {
		title = "Chat App"
	}

	return c.HTML5(c.HTML5Props{
		Title:    title,
		Language: "en",
		Head: []g.Node{
			Script(Src("/config.js")),
			Script(Src(htmxScript)),
			Script(Src(htmxWSScript)),
			Link(Rel("stylesheet"), Href("https://cdn.jsdelivr.net/npm/tailwindcss@2/dist/tailwind.min.css")),
		},
		Body: []g.Node{
			Class("h-screen flex flex-col bg-gray-100"),
			hx.Ext("ws"),
			g.Attr("ws-connect", "/ws"),
			header(data.UserID),
			FlashList(data.Flashes),
			Main(
				Class("flex flex-1 overflow-hidden"),
				sidebarNode(data.Sidebar),
				Div(
					Class("flex flex-1 flex-col"),
					ChatWindow(data.Active),
					composerNode(data.Composer),
				),
			),
		},
	})
}

func header(userID string) g.Node {
	return Header(
		Class("flex items-center justify-between bg-indigo-700 px-6 py-3 text-white"),
		H1(Class("text-xl font-bold"), g.Text("Chat App")),
		Div(
			Class("flex items-center gap-4"),
			ConnectionStatus("connecting"),
			Span(g.Text(userID)),
			A(Href("/auth/logout"), Class("underline"), g.Text("Logout")),
		),
	)
}

// FlashList renders pending flash messages.
func FlashList(f Flashes) g.Node {
	if len(f.Success) == 0 && len(f.Error) == 0 {
		return nil
	}
	return flashList(f, false)
}

// FlashListSwap replaces the flash area out of band, e.g. next to a fragment.
func FlashListSwap(f Flashes) g.Node {
	return flashList(f, true)
}

func flashList(f Flashes, oob bool) g.Node {
	return Div(
		ID("flashes"),
		g.If(oob, hx.SwapOOB("true")),
		g.Map(f.Success, func(msg string) g.Node {
			return Div(Class("bg-green-100 px-6 py-2 text-green-800"), g.Text(msg))
		}),
		g.Map(f.Error, func(msg string) g.Node {
			return Div(Class("bg-red-100 px-6 py-2 text-red-800"), Role("alert"), g.Text(msg))
		}),
	)
}

func sidebarNode(s *Sidebar) g.Node {
	if s == nil {
		return nil
	}
	return s.Node()
}

func composerNode(comp *Composer) g.Node {
	if comp == nil {
		return nil
	}
	return comp.Node()
}

// SignedOutPage is shown after logout when the provider sends the user back.
func SignedOutPage(flashes Flashes) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    "Signed out",
		Language: "en",
		Body: []g.Node{
			FlashList(flashes),
			Main(
				Class("mx-auto mt-24 max-w-md text-center"),
				H1(Class("text-2xl font-bold"), g.Text("You are signed out")),
				A(Href("/auth/login"), Class("mt-4 inline-block underline"), g.Text("Sign in again")),
			),
		},
	})
}

// LoginResultPage is what the CLI's callback listener shows in the browser.
func LoginResultPage(userID string, err error) g.Node {
	heading, detail := "Signed in", "Signed in as "+userID+". You can close this window."
	if err != nil {
		heading, detail = "Login failed", err.Error()
	}
	return c.HTML5(c.HTML5Props{
		Title:    heading,
		Language: "en",
		Body: []g.Node{
			Main(
				Class("mx-auto mt-24 max-w-md text-center"),
				H1(Class("text-2xl font-bold"), g.Text(heading)),
				P(Class("mt-4"), g.Text(detail)),
			),
		},
	})
}
