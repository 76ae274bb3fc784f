// Package apperr holds the error taxonomy shared by the webhook and
// reconciliation paths.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthentication marks a bad, missing or stale signature. Never retried.
	ErrAuthentication = errors.New("authentication failed")
	// ErrMalformed marks a request body that is not valid JSON.
	ErrMalformed = errors.New("malformed request")
	// ErrValidation marks a structurally invalid payload. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrOwnershipViolation marks a payload whose owner does not exist or does
	// not match the stored owner.
	ErrOwnershipViolation = errors.New("ownership violation")
	// ErrTransient marks store contention or provider timeouts.
	ErrTransient = errors.New("transient failure")
)

// ValidationError lists the offending fields of a payload.
type ValidationError struct {
	Kind   string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s payload", e.Kind)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidation builds a ValidationError for the given payload kind.
func NewValidation(kind string, fields ...string) error {
	return &ValidationError{Kind: kind, Fields: fields}
}

// Ownership wraps ErrOwnershipViolation with detail.
func Ownership(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOwnershipViolation, fmt.Sprintf(format, args...))
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Retryable reports whether replaying the operation could succeed.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrAuthentication) &&
		!errors.Is(err, ErrMalformed) &&
		!errors.Is(err, ErrValidation) &&
		!errors.Is(err, ErrOwnershipViolation)
}
