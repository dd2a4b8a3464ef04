package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failed provider call carrying the HTTP status when one
// was received. Status 0 means the failure happened before a response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// statusOverloaded is the non-standard 529 some providers send when the
// upstream model is saturated.
const statusOverloaded = 529

// IsTransient reports whether err is a provider failure worth retrying:
// rate limiting or temporary unavailability.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, statusOverloaded:
		return true
	}
	return false
}
