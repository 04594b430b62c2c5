package web

import (
	"context"
	"fmt"

	"github.com/nfrund/chatapp/internal/domain"
	"github.com/nfrund/chatapp/internal/feed"
	"github.com/nfrund/chatapp/internal/pubsub"
	"github.com/nfrund/chatapp/internal/ui"
)

// ListenLive folds live feed events into the chat state and pushes the
// matching fragments to every connected browser. It returns once both
// subscriptions are live; delivery stops when ctx is cancelled.
func (s *Server) ListenLive(ctx context.Context, bus pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, bus, feed.MessagesReceived, s.onLiveMessage); err != nil {
		return fmt.Errorf("subscribe to %s: %w", feed.MessagesReceived.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, bus, feed.ConnectionStatus, s.onConnectionStatus); err != nil {
		return fmt.Errorf("subscribe to %s: %w", feed.ConnectionStatus.Name(), err)
	}
	s.logger.Info("Listening for live chat events")
	return nil
}

func (s *Server) onLiveMessage(ctx context.Context, userID string, msg domain.Message) error {
	s.state.Append(msg)
	fragment, err := s.renderer.Fragment(ctx, ui.LiveMessage(msg))
	if err != nil {
		return err
	}
	s.hub.Broadcast(fragment)
	s.logger.Debug("Live message pushed", "message_id", msg.MessageID, "from", msg.UserID)
	return nil
}

func (s *Server) onConnectionStatus(ctx context.Context, userID string, st feed.Status) error {
	switch st.State {
	case feed.StateError:
		s.logger.Warn("Live feed error", "error", st.Error)
	case feed.StateClosed:
		s.logger.Info("Live feed closed", "code", st.Code, "reason", st.Reason, "clean", st.Clean)
	}
	fragment, err := s.renderer.Fragment(ctx, ui.ConnectionStatus(st.State))
	if err != nil {
		return err
	}
	s.hub.Broadcast(fragment)
	return nil
}
