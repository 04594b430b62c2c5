package transport

import (
	"fmt"

	"github.com/nfrund/chatapp/internal/domain"
)

// StatusError is a non-success, non-401 answer from the API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("failed to %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrFetchFailed
}
