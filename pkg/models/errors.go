package models

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input before the cascade runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TenantNotFoundError signals an unknown tenant_id.
type TenantNotFoundError struct {
	TenantID string
}

func (e *TenantNotFoundError) Error() string {
	return "tenant not found: " + e.TenantID
}

// IsTenantNotFound reports whether err is a TenantNotFoundError.
func IsTenantNotFound(err error) bool {
	var te *TenantNotFoundError
	return errors.As(err, &te)
}

// RemoteModelError wraps remote model failures (timeout, rate limit,
// malformed response). Caught at the orchestrator boundary and degraded
// to the deterministic fallback reply; it never crosses Process.
type RemoteModelError struct {
	Provider  string
	RateLimit bool
	Err       error
}

func (e *RemoteModelError) Error() string {
	return fmt.Sprintf("remote model %s: %v", e.Provider, e.Err)
}

func (e *RemoteModelError) Unwrap() error { return e.Err }

// IsRemoteModel reports whether err is a RemoteModelError.
func IsRemoteModel(err error) bool {
	var re *RemoteModelError
	return errors.As(err, &re)
}

// ErrSessionNotFound is returned by the memory store for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")
