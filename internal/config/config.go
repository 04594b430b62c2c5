package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/chatapp/internal/domain"
)

// Keys of the runtime configuration object. The same names are used for the
// build-time values, the runtime file and the process environment.
const (
	KeyIssuerURL   = "VUE_APP_DEX_ISSUER_URL"
	KeyClientID    = "VUE_APP_DEX_CLIENT_ID"
	KeyRedirectURI = "VUE_APP_DEX_REDIRECT_URI"
	KeyScopes      = "VUE_APP_DEX_SCOPES"
	KeyAPIBaseURL  = "VUE_APP_API_BASE_URL"
	KeyWSURL       = "VUE_APP_WS_URL"
)

// DefaultScopes is requested when no source sets KeyScopes.
const DefaultScopes = "openid profile email"

// Keys lists every recognised configuration key.
var Keys = []string{KeyIssuerURL, KeyClientID, KeyRedirectURI, KeyScopes, KeyAPIBaseURL, KeyWSURL}

// Source is one flat key/value configuration source.
type Source map[string]string

// Get returns the trimmed value for key, or "".
func (s Source) Get(key string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s[key])
}

// Config holds the resolved client configuration. It is built once by Resolve
// and must not be modified afterwards.
type Config struct {
	IssuerURL   string `validate:"required,url"`
	ClientID    string
	RedirectURI string `validate:"omitempty,url"`
	Scopes      string
	APIBaseURL  string `validate:"omitempty,url"`
	WSURL       string `validate:"omitempty,url"`
}

// ConfigurationError describes why a configuration could not be resolved.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match domain.ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return domain.ErrConfiguration
}

var validate = validator.New()

// fieldKeys maps struct fields to the key reported in errors.
var fieldKeys = map[string]string{
	"IssuerURL":   KeyIssuerURL,
	"ClientID":    KeyClientID,
	"RedirectURI": KeyRedirectURI,
	"Scopes":      KeyScopes,
	"APIBaseURL":  KeyAPIBaseURL,
	"WSURL":       KeyWSURL,
}

// Resolve merges the build-time and runtime sources into a Config.
// A non-empty build value always wins over the runtime value for the same key.
func Resolve(build, runtime Source) (*Config, error) {
	pick := func(key string) string {
		if v := build.Get(key); v != "" {
			return v
		}
		return runtime.Get(key)
	}

	cfg := &Config{
		IssuerURL:   pick(KeyIssuerURL),
		ClientID:    pick(KeyClientID),
		RedirectURI: pick(KeyRedirectURI),
		Scopes:      pick(KeyScopes),
		APIBaseURL:  strings.TrimRight(pick(KeyAPIBaseURL), "/"),
		WSURL:       pick(KeyWSURL),
	}
	if cfg.Scopes == "" {
		cfg.Scopes = DefaultScopes
	}

	if cfg.IssuerURL == "" {
		return nil, &ConfigurationError{Field: KeyIssuerURL, Reason: "is not set"}
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ConfigurationError{
				Field:  fieldKeys[verrs[0].StructField()],
				Reason: "must be a valid " + verrs[0].Tag(),
			}
		}
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

// ScopeList splits the scope string into individual scopes.
func (c *Config) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// MessagesURL returns the message collection endpoint.
func (c *Config) MessagesURL() string {
	return c.APIBaseURL + "/messages"
}

// PostLogoutRedirectURI is where the provider sends the user after logout.
func (c *Config) PostLogoutRedirectURI() string {
	return c.RedirectURI
}

// Public returns the configuration as a runtime object.
func (c *Config) Public() Source {
	return Source{
		KeyIssuerURL:   c.IssuerURL,
		KeyClientID:    c.ClientID,
		KeyRedirectURI: c.RedirectURI,
		KeyScopes:      c.Scopes,
		KeyAPIBaseURL:  c.APIBaseURL,
		KeyWSURL:       c.WSURL,
	}
}
