package domain

import (
	"errors"
	"fmt"
)

// UpstreamError is returned by generation providers for transport,
// authentication and API failures.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream failure: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode exposes the upstream status, zero when the call never got a response.
func (e *UpstreamError) HTTPStatusCode() int {
	return e.StatusCode
}

var (
	// ErrSessionLimit is returned when a new session would exceed the store's capacity.
	ErrSessionLimit = errors.New("session limit reached")
	// ErrVersionConflict is returned by persistent backends when a conditional write loses a race.
	ErrVersionConflict = errors.New("session version conflict")
)
