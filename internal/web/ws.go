package web

import (
	"context"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatapp/internal/hub"
	"github.com/nfrund/chatapp/internal/middleware"
)

const subscriberBuffer = 64

// ServeWS upgrades the browser's live connection and streams hub fragments to it.
func (s *Server) ServeWS(c echo.Context) error {
	log := middleware.FromContext(c.Request().Context())
	// Origin must match the host, so only this UI's pages can connect.
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error("Failed to upgrade WebSocket connection", "error", err)
		return nil
	}

	sub := hub.NewSubscriber(middleware.CurrentSession(c).UserID(), subscriberBuffer)
	s.hub.Register(sub)
	log.Info("Browser live connection opened", "subscriber", sub.ID)

	// The request context ends when the handler returns, so the pumps get
	// their own.
	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, conn, sub)
	s.readPump(ctx, conn, sub)
	cancel()
	return nil
}

// readPump discards anything the browser sends and returns when it goes away.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	defer s.hub.Unregister(sub)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.logger.Debug("Browser live connection closed", "subscriber", sub.ID)
			default:
				s.logger.Debug("Browser live connection ended", "subscriber", sub.ID, "error", err)
			}
			return
		}
	}
}

// writePump forwards fragments until the hub closes the subscriber's queue.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	defer conn.Close(websocket.StatusNormalClosure, "")
	for fragment := range sub.Send {
		if err := conn.Write(ctx, websocket.MessageText, fragment); err != nil {
			s.logger.Debug("Browser write failed", "subscriber", sub.ID, "error", err)
			return
		}
	}
}
