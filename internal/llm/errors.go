package llm

import (
	"fmt"
	"time"
)

type ErrorKind string

const (
	ErrRateLimited  ErrorKind = "rate_limited"
	ErrModelLoading ErrorKind = "model_loading"
	ErrAuth         ErrorKind = "auth_error"
	ErrMalformed    ErrorKind = "malformed_response"
	ErrTimeout      ErrorKind = "timeout"
	ErrTransport    ErrorKind = "transport_error"
	ErrUpstream     ErrorKind = "upstream_error"
)

// ProviderError is the only error shape adapters surface, apart from raw
// context cancellation.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the provider asked the caller to come back later.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrRateLimited || e.Kind == ErrModelLoading
}

func malformed(provider, msg string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrMalformed, Message: msg, Err: err}
}

func missingKey(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrAuth, Message: "api key not configured"}
}
