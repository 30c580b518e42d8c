package llm

import "fmt"

// InvocationError wraps a failure from an underlying backend call, carrying
// the provider name alongside the raw cause so fallback logic can report
// which provider failed.
type InvocationError struct {
	Provider string
	Err      error
}

func (e InvocationError) Error() string {
	return fmt.Sprintf("backend %q invocation failed: %v", e.Provider, e.Err)
}

func (e InvocationError) Unwrap() error {
	return e.Err
}
