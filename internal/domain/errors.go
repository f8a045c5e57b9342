package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProviderUnavailable indicates a transient provider failure (5xx or
	// network). Callers may retry with backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrAuthExpired indicates the provider rejected our credentials. Not
	// retryable; the caller must prompt re-authentication.
	ErrAuthExpired = errors.New("provider authentication expired")

	// ErrAccountNotFound is returned when no provider account is registered
	// for the requested (user, source) pair.
	ErrAccountNotFound = errors.New("provider account not found")

	// ErrUnknownSource is returned when no adapter is configured for the
	// requested source.
	ErrUnknownSource = errors.New("unknown activity source")
)

// RateLimitedError carries the provider-supplied delay after which the fetch
// may be retried.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
}
