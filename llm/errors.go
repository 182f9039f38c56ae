package llm

import (
	"fmt"
	"time"
)

// ProviderError is the generic backend failure and the base of the error
// taxonomy. Provider names the configured backend it came from; Err keeps
// the underlying SDK or transport error for diagnostics.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AuthenticationError covers rejected credentials and, for local backends,
// an unreachable service. Both mean the same thing to the user: this
// provider cannot be talked to as configured.
type AuthenticationError struct {
	ProviderError
}

// RateLimitError is a throttling rejection. RetryAfter is zero when the
// backend gave no hint.
type RateLimitError struct {
	ProviderError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := e.ProviderError.Error()
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	return msg
}

// ModelNotFoundError means the backend does not serve the requested model.
type ModelNotFoundError struct {
	ProviderError
	Model string
}

func (e *ModelNotFoundError) Error() string {
	msg := fmt.Sprintf("%s: model %q: %s", e.Provider, e.Model, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}
