// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Content errors
	ErrInvalidContent = errors.New("invalid content reference")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Planning errors
	ErrExhausted = errors.New("content exhausted")

	// Degraded-input conditions. These are absorbed internally and resolved
	// with neutral defaults; they exist so internal code can classify them.
	ErrDegradedInput = errors.New("degraded input")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "mastery", "content", "policy"
	Op      string // Operation that failed, e.g., "RecordAnswer", "Generate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Mastery domain errors
var (
	ErrSkillNotFound = NewDomainError("mastery", "Find", ErrNotFound, "skill not found")
)

// Content domain errors
var (
	ErrTemplateNotFound = NewDomainError("content", "Find", ErrNotFound, "question template not found")
	ErrVariantNotFound  = NewDomainError("content", "Find", ErrNotFound, "generated variant not found")
	ErrQuestionNotFound = NewDomainError("content", "Find", ErrNotFound, "bank question not found")
	ErrVariantMismatch  = NewDomainError("content", "Verify", ErrInvalidContent, "variant does not belong to the stated template")
)

// Policy domain errors
var (
	ErrRuleNotFound       = NewDomainError("policy", "Find", ErrNotFound, "policy rule not found")
	ErrUnknownOperator    = NewDomainError("policy", "Evaluate", ErrInvalidInput, "unsupported condition operator")
	ErrUnknownCondition   = NewDomainError("policy", "Parse", ErrInvalidInput, "unparsable condition")
	ErrMissingFact        = NewDomainError("policy", "Evaluate", ErrInvalidInput, "condition key not present in facts")
	ErrTypeMismatchedFact = NewDomainError("policy", "Evaluate", ErrInvalidInput, "condition value type does not match fact")
)

// Behavior domain errors
var (
	ErrStateNotFound = NewDomainError("behavior", "Find", ErrNotFound, "behavioral state not found")
)

// Planner domain errors
var (
	ErrUnknownScope = NewDomainError("planner", "ResolveScope", ErrInvalidInput, "unknown planning scope")
	ErrSlotsExhaust = NewDomainError("planner", "Plan", ErrExhausted, "no content available for slot")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidContent checks if the error is a content/identity mismatch.
func IsInvalidContent(err error) bool {
	return errors.Is(err, ErrInvalidContent)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrStoreUnavailable)
}
