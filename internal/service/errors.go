package service

import "fmt"

// Error represents a custom error with code and message
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

// NewError creates a new error
func NewError(code, message string) Error {
	return Error{Code: code, Message: message}
}

var (
	ErrInvalidInput       = NewError("invalid_input", "invalid or missing video URL")
	ErrRateLimited        = NewError("rate_limited", "too many requests")
	ErrAllProvidersFailed = NewError("all_providers_failed", "service unavailable")
	ErrNoFormat           = NewError("no_format", "no suitable format found")
	ErrUnexpected         = NewError("unexpected", "internal error")
)

// ProviderError describes why a single fallback provider was skipped. It is
// reported to the dispatcher's Observer and never returned to callers.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s: status %d", e.Provider, e.Status)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
