package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned when no API key is configured for the provider
var ErrMissingCredentials = errors.New("missing model API key")

// ErrNoChoices is returned when a provider answers without any choice
var ErrNoChoices = errors.New("no choices in response")

// APIError is a non-200 answer from the provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, truncate(e.Body, 300))
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500 && e.StatusCode < 600:
		return true
	default:
		return false
	}
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
