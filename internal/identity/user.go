package identity

import "time"

// User is what the identity provider issued for the signed-in person.
type User struct {
	// Profile holds the verified ID token claims.
	Profile      map[string]any `json:"profile"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	IDToken      string         `json:"id_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// Tokens without an expiry never expire.
func (u *User) Expired(now time.Time) bool {
	if u == nil || u.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(u.ExpiresAt)
}

// clone returns a deep enough copy that callers can't mutate stored state.
func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Profile != nil {
		out.Profile = make(map[string]any, len(u.Profile))
		for k, v := range u.Profile {
			out.Profile[k] = v
		}
	}
	return &out
}
