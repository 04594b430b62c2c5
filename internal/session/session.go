package session

import (
	"fmt"
	"time"

	"github.com/nfrund/chatapp/internal/identity"
)

// Session is the signed-in user as the rest of the client sees it.
type Session struct {
	Profile      map[string]any
	AccessToken  string
	RefreshToken string
	Expired      bool
}

// UserID picks the most readable identifier from the profile claims.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	for _, claim := range []string{"preferred_username", "name", "email", "sub"} {
		if v, ok := s.Profile[claim]; ok {
			if str := fmt.Sprint(v); str != "" {
				return str
			}
		}
	}
	return ""
}

func fromUser(u *identity.User, now time.Time) *Session {
	if u == nil {
		return nil
	}
	return &Session{
		Profile:      u.Profile,
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		Expired:      u.Expired(now),
	}
}
