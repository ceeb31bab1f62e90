package telemetry

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed      = errors.New("provider authentication failed")
	ErrSessionExpired  = errors.New("provider session expired")
	ErrNotSupported    = errors.New("operation not supported by provider")
	ErrMissingIdentity = errors.New("record missing identity field")
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError wraps a transport, status or decode failure from one
// provider's API. It never escalates past that provider's fetch.
type ProviderError struct {
	Provider Provider
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider Provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
