// Package testutils holds fakes shared by package tests.
package testutils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Provider is an in-process OIDC provider speaking just enough of discovery,
// the authorization endpoint and the token endpoint for the chat client. ID tokens it
// issues are unsigned, so verifiers must skip the signature check.
type Provider struct {
	Server   *httptest.Server
	ClientID string

	// Claims are merged into every ID token.
	Claims map[string]any
	// AccessTTL is the expires_in handed out with access tokens.
	AccessTTL time.Duration
	// NoRefreshToken stops refresh tokens from being issued.
	NoRefreshToken bool
	// NoIDTokenOnRefresh omits id_token from refresh responses.
	NoIDTokenOnRefresh bool
	// FailRefresh makes every refresh grant fail with invalid_grant.
	FailRefresh atomic.Bool

	TokenRequests   atomic.Int32
	RefreshRequests atomic.Int32

	mu       sync.Mutex
	codes    map[string]grant
	refresh  map[string]bool
	sequence int
}

type grant struct {
	nonce     string
	challenge string
}

// NewProvider starts a provider and stops it when the test ends.
func NewProvider(t *testing.T) *Provider {
	t.Helper()

	p := &Provider{
		ClientID:  "chat-client",
		Claims:    map[string]any{"preferred_username": "alice", "email": "alice@example.com"},
		AccessTTL: time.Hour,
		codes:     make(map[string]grant),
		refresh:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("/auth", p.authorize)
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"keys": []any{}})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Issuer is the provider's issuer URL.
func (p *Provider) Issuer() string {
	return p.Server.URL
}

func (p *Provider) discovery(w http.ResponseWriter, r *http.Request) {
	base := p.Server.URL
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/keys",
		"end_session_endpoint":                  base + "/logout",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

// authorize approves every request and redirects straight back with a code.
func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.String() == "" {
		http.Error(w, "missing redirect_uri", http.StatusBadRequest)
		return
	}

	code := uuid.NewString()
	p.mu.Lock()
	p.codes[code] = grant{nonce: q.Get("nonce"), challenge: q.Get("code_challenge")}
	p.mu.Unlock()

	back := redirect.Query()
	back.Set("code", code)
	back.Set("state", q.Get("state"))
	redirect.RawQuery = back.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	p.TokenRequests.Add(1)
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.mu.Lock()
		g, ok := p.codes[r.PostForm.Get("code")]
		delete(p.codes, r.PostForm.Get("code"))
		p.mu.Unlock()
		if !ok || !pkceMatches(g.challenge, r.PostForm.Get("code_verifier")) {
			oauthError(w, "invalid_grant")
			return
		}
		p.issue(w, g.nonce, true)
	case "refresh_token":
		p.RefreshRequests.Add(1)
		p.mu.Lock()
		known := p.refresh[r.PostForm.Get("refresh_token")]
		p.mu.Unlock()
		if !known || p.FailRefresh.Load() {
			oauthError(w, "invalid_grant")
			return
		}
		p.issue(w, "", !p.NoIDTokenOnRefresh)
	default:
		oauthError(w, "unsupported_grant_type")
	}
}

func (p *Provider) issue(w http.ResponseWriter, nonce string, withID bool) {
	p.mu.Lock()
	p.sequence++
	seq := p.sequence
	p.mu.Unlock()

	body := map[string]any{
		"access_token": fmt.Sprintf("access-%d", seq),
		"token_type":   "Bearer",
		"expires_in":   int(p.AccessTTL.Seconds()),
	}
	if !p.NoRefreshToken {
		rt := fmt.Sprintf("refresh-%d", seq)
		p.RegisterRefreshToken(rt)
		body["refresh_token"] = rt
	}
	if withID {
		body["id_token"] = p.IDToken(nonce)
	}
	writeJSON(w, http.StatusOK, body)
}

// RegisterRefreshToken makes the provider accept rt on the refresh grant.
func (p *Provider) RegisterRefreshToken(rt string) {
	p.mu.Lock()
	p.refresh[rt] = true
	p.mu.Unlock()
}

// IDToken mints an unsigned ID token for the configured claims.
func (p *Provider) IDToken(nonce string) string {
	now := time.Now()
	claims := map[string]any{
		"iss": p.Server.URL,
		"sub": "user-1",
		"aud": p.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	for k, v := range p.Claims {
		claims[k] = v
	}

	header, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("unsigned"))
}

// Authorize drives the authorization endpoint for authURL and returns the
// query the provider redirected back with.
func (p *Provider) Authorize(t *testing.T, authURL string) url.Values {
	t.Helper()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(authURL)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize: unexpected status %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("authorize: bad location: %v", err)
	}
	return loc.Query()
}

func pkceMatches(challenge, verifier string) bool {
	if challenge == "" {
		return verifier == ""
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]) == challenge
}

func oauthError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
