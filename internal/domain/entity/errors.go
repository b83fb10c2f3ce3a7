package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the pipeline's failure taxonomy. The orchestrator
// and the evaluator retry loop branch on these kinds with errors.Is rather
// than on concrete error values thrown by transports.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrConfigMissing indicates required configuration is absent at startup;
	// fatal before any I/O
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrRateLimited indicates the remote service answered 429
	ErrRateLimited = errors.New("rate limited by remote service")

	// ErrAuthFailure indicates the LLM service rejected the credentials
	ErrAuthFailure = errors.New("authentication failed")

	// ErrParseFailure indicates malformed HTML/JSON from a remote service
	ErrParseFailure = errors.New("response parse failed")

	// ErrValidationFailed indicates a parseable but semantically invalid payload
	ErrValidationFailed = errors.New("validation failed")

	// ErrPermanentExclusion marks paid or unreadable articles that are
	// discarded while their reference is still marked processed
	ErrPermanentExclusion = errors.New("article permanently excluded")

	// ErrStorageFailure indicates a persistence error; the affected item is
	// skipped without marking its reference processed
	ErrStorageFailure = errors.New("storage operation failed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap ties field-level validation errors into the taxonomy so callers can
// match them with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
