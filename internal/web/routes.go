package web

import (
	"github.com/nfrund/chatapp/internal/middleware"
)

func (s *Server) routes() {
	s.E.GET("/health", s.Health)
	s.E.GET("/config.js", s.ConfigScript)

	auth := s.E.Group("/auth", middleware.RateLimiter(5))
	auth.GET("/login", s.Login)
	auth.GET("/callback", s.Callback)
	auth.GET("/logout", s.Logout)

	signedIn := middleware.RequireSession(s.sessions)
	s.E.GET("/", s.Home, signedIn)
	s.E.GET("/chats/:id", s.SelectChat, signedIn)
	s.E.POST("/chat/messages", s.PostMessage, signedIn, middleware.RateLimiter(10))
	s.E.GET("/ws", s.ServeWS, signedIn)
}
