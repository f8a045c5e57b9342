// Package provider adapts external event feeds into normalized activity
// drafts. Adapters only perform the outbound HTTP call; they never touch the
// store and never panic on malformed payloads.
package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"example.com/devledger/internal/domain"
)

const defaultTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// classifyStatus maps a non-2xx provider response onto the shared error
// taxonomy. Rate limiting wins over auth failures when a retry delay is
// advertised, because providers reuse 403 for both.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("Retry-After") != "" {
		return &domain.RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.ErrAuthExpired
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("unexpected provider status %d", resp.StatusCode)
}

func retryAfter(resp *http.Response) time.Duration {
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Minute
}
