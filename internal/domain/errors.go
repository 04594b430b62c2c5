package domain

import "errors"

// Sentinel errors for the client. Every failure mode surfaced by the config
// resolver, session manager and transport matches exactly one of these via
// errors.Is, so callers can branch on the kind without parsing messages.
var (
	// ErrConfiguration is returned when the runtime configuration cannot be resolved.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAuthenticationRequired is returned when no usable access token exists.
	// The caller is expected to start a login.
	ErrAuthenticationRequired = errors.New("user not authenticated")

	// ErrSessionExpired is returned when renewal failed or the API rejected the
	// token. A forced logout has already been triggered when it is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrFetchFailed is returned for non-401, non-2xx API responses.
	ErrFetchFailed = errors.New("request failed")

	// ErrTransport is returned for socket level failures.
	ErrTransport = errors.New("transport error")
)
