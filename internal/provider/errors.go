package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError means the provider is missing a credential or endpoint.
// The call is refused without a network round-trip.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Provider, e.Reason)
}

// TransportError is a non-success HTTP status or a network failure.
// StatusCode is zero when no response was received.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EmptyResponseError means the provider answered successfully with no usable content.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response from %s", e.Provider)
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsRateLimited reports whether err, or any error joined into it, is a 429.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if IsRateLimited(e) {
				return true
			}
		}
	}
	if wrapped := errors.Unwrap(err); wrapped != nil {
		return IsRateLimited(wrapped)
	}
	return false
}

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 2048

// TruncateBody shortens an error body for logs and errors.
func TruncateBody(body string) string {
	if len(body) > maxErrorBody {
		return body[:maxErrorBody] + "..."
	}
	return body
}
