package session

import "fmt"

// NotFoundError is returned when an operation references an unknown session.
type NotFoundError struct {
	SessionID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// ExhaustedProvidersError is the aggregate failure surfaced when every
// eligible backend failed during the fallback protocol.
type ExhaustedProvidersError struct {
	// Attempts is the number of backends tried.
	Attempts int

	// Last is the error from the final attempt.
	Last error
}

func (e ExhaustedProvidersError) Error() string {
	return fmt.Sprintf("all %d eligible providers failed, last error: %v", e.Attempts, e.Last)
}

func (e ExhaustedProvidersError) Unwrap() error {
	return e.Last
}
