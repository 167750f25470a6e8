package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers non-success HTTP responses, network failures and
	// response bodies missing the expected reply field.
	ErrTransport = errors.New("llm transport failure")
	// ErrRunFailed is returned when an assistant run ends in a non-success state.
	ErrRunFailed = errors.New("llm run did not complete")
	// ErrTimeout is returned when a run is still pending after the poll bound.
	ErrTimeout = errors.New("llm run timed out")
	// ErrNotConfigured is returned when a provider has no API key.
	ErrNotConfigured = errors.New("llm provider not configured")
)

// ProviderError carries provider context around one of the sentinels above.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Kind       error
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func transportErr(provider, op string, status int, err error) error {
	return &ProviderError{Provider: provider, Op: op, StatusCode: status, Kind: ErrTransport, Err: err}
}

func malformed(provider, op, what string) error {
	return transportErr(provider, op, 0, fmt.Errorf("malformed response: %s", what))
}
