package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// pendingTTL bounds how long an authorization request may take to come back.
const pendingTTL = 10 * time.Minute

var (
	ErrUnknownState   = errors.New("identity: unknown or expired state")
	ErrMissingCode    = errors.New("identity: callback has no authorization code")
	ErrMissingIDToken = errors.New("identity: token response has no id_token")
	ErrNonceMismatch  = errors.New("identity: id_token nonce mismatch")
	ErrNoRefreshToken = errors.New("identity: user has no refresh token")
)

// ProviderError is an error the provider reported on the redirect callback.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "identity: provider error: " + e.Code
	}
	return fmt.Sprintf("identity: provider error: %s: %s", e.Code, e.Description)
}

// Settings configures the OIDC client.
type Settings struct {
	Authority             string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	PostLogoutRedirectURI string
	Scopes                []string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for discovery and token calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// InsecureSkipSignatureCheck accepts ID tokens without checking their
// signature. Only for in-process test providers.
func InsecureSkipSignatureCheck() Option {
	return func(c *Client) { c.skipSigning = true }
}

type pendingSignin struct {
	nonce    string
	verifier string
	created  time.Time
}

// Client runs the authorization-code flow with PKCE against an OIDC provider
// and keeps the resulting user in a UserStore.
type Client struct {
	settings   Settings
	store      UserStore
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger

	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	endSession  string
	skipSigning bool

	mu      sync.Mutex
	pending map[string]pendingSignin
}

// NewClient discovers the provider at settings.Authority and returns a ready client.
func NewClient(ctx context.Context, settings Settings, store UserStore, opts ...Option) (*Client, error) {
	c := &Client{
		settings:   settings,
		store:      store,
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     slog.Default(),
		pending:    make(map[string]pendingSignin),
	}
	for _, opt := range opts {
		opt(c)
	}

	provider, err := oidc.NewProvider(c.httpContext(ctx), settings.Authority)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC provider %s: %w", settings.Authority, err)
	}

	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		c.logger.Warn("Could not read provider metadata", "error", err)
	}
	c.endSession = meta.EndSessionEndpoint

	c.oauth = &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURI,
		Scopes:       settings.Scopes,
		Endpoint:     provider.Endpoint(),
	}
	c.verifier = provider.Verifier(&oidc.Config{
		ClientID:                   settings.ClientID,
		Now:                        c.now,
		InsecureSkipSignatureCheck: c.skipSigning,
	})

	c.logger.Info("OIDC provider initialized", "issuer", settings.Authority, "end_session", c.endSession != "")
	return c, nil
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.httpClient)
}

// SigninRedirectURL starts an authorization request and returns the URL the
// user agent must be sent to.
func (c *Client) SigninRedirectURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	c.mu.Lock()
	c.prunePendingLocked()
	c.pending[state] = pendingSignin{nonce: nonce, verifier: verifier, created: c.now()}
	c.mu.Unlock()

	return c.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

func (c *Client) prunePendingLocked() {
	cutoff := c.now().Add(-pendingTTL)
	for state, p := range c.pending {
		if p.created.Before(cutoff) {
			delete(c.pending, state)
		}
	}
}

func (c *Client) takePending(state string) (pendingSignin, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prunePendingLocked()
	p, ok := c.pending[state]
	if ok {
		delete(c.pending, state)
	}
	return p, ok
}

// SigninRedirectCallback completes an authorization request from the query
// parameters the provider redirected back with.
func (c *Client) SigninRedirectCallback(ctx context.Context, params url.Values) (*User, error) {
	if code := params.Get("error"); code != "" {
		return nil, &ProviderError{Code: code, Description: params.Get("error_description")}
	}

	pending, ok := c.takePending(params.Get("state"))
	if !ok {
		return nil, ErrUnknownState
	}
	code := params.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	hctx := c.httpContext(ctx)
	tok, err := c.oauth.Exchange(hctx, code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, ErrMissingIDToken
	}
	idToken, err := c.verifier.Verify(hctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != pending.nonce {
		return nil, ErrNonceMismatch
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}

	u := &User{
		Profile:      claims,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawID,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if err := c.store.Save(ctx, u); err != nil {
		return nil, err
	}
	c.logger.Info("User signed in", "sub", idToken.Subject)
	return u, nil
}

// SigninSilent renews the user's tokens with the refresh-token grant.
func (c *Client) SigninSilent(ctx context.Context, u *User) (*User, error) {
	if u == nil || u.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	hctx := c.httpContext(ctx)
	// Only the refresh token is handed over so the source cannot decide the
	// old access token is still good by its own clock.
	tok, err := c.oauth.TokenSource(hctx, &oauth2.Token{RefreshToken: u.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	renewed := u.clone()
	renewed.AccessToken = tok.AccessToken
	renewed.RefreshToken = tok.RefreshToken
	renewed.TokenType = tok.TokenType
	renewed.ExpiresAt = tok.Expiry

	if rawID, _ := tok.Extra("id_token").(string); rawID != "" {
		idToken, err := c.verifier.Verify(hctx, rawID)
		if err != nil {
			return nil, fmt.Errorf("verify renewed id_token: %w", err)
		}
		var claims map[string]any
		if err := idToken.Claims(&claims); err == nil {
			renewed.Profile = claims
		}
		renewed.IDToken = rawID
	}

	if err := c.store.Save(ctx, renewed); err != nil {
		return nil, err
	}
	c.logger.Debug("Tokens renewed", "expires_at", renewed.ExpiresAt)
	return renewed, nil
}

// SignoutRedirectURL forgets the stored user and returns the provider's
// end-session URL. Without an end-session endpoint the post logout redirect
// URI is returned.
func (c *Client) SignoutRedirectURL(ctx context.Context, u *User) (string, error) {
	if err := c.store.Remove(ctx); err != nil {
		return "", err
	}

	if c.endSession == "" {
		return c.settings.PostLogoutRedirectURI, nil
	}
	target, err := url.Parse(c.endSession)
	if err != nil {
		return "", fmt.Errorf("parse end_session_endpoint: %w", err)
	}
	q := target.Query()
	if u != nil && u.IDToken != "" {
		q.Set("id_token_hint", u.IDToken)
	}
	if c.settings.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", c.settings.PostLogoutRedirectURI)
	}
	q.Set("client_id", c.settings.ClientID)
	target.RawQuery = q.Encode()
	return target.String(), nil
}

// GetUser returns the stored user or nil.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	return c.store.Load(ctx)
}

// RemoveUser forgets the stored user without contacting the provider.
func (c *Client) RemoveUser(ctx context.Context) error {
	return c.store.Remove(ctx)
}
