package domain

import "errors"

// Engine error classes. Every error returned by the store matches at most one
// of these with errors.Is.
var (
	// ErrValidation is returned when input or relations are invalid. No state was changed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for uniqueness violations. It always accompanies ErrValidation.
	ErrConflict = errors.New("resource conflict")

	// ErrNotFound is returned by operations where a missing target is an error
	ErrNotFound = errors.New("resource not found")

	// ErrPersistence is returned when the data file could not be written
	ErrPersistence = errors.New("Shranjevanje podatkov ni uspelo")
)

// ValidationError carries a human-readable reason for a rejected operation
type ValidationError struct {
	Reason   string
	conflict bool
}

// NewValidationError creates a validation error with the given reason
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// NewConflictError creates a validation error that also matches ErrConflict
func NewConflictError(reason string) *ValidationError {
	return &ValidationError{Reason: reason, conflict: true}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is match ErrValidation and, for duplicates, ErrConflict
func (e *ValidationError) Unwrap() []error {
	if e.conflict {
		return []error{ErrValidation, ErrConflict}
	}
	return []error{ErrValidation}
}

// NotFoundError names the entity that does not exist
type NotFoundError struct {
	Reason string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is match ErrNotFound
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// ValidationMessages provides human-readable validation error messages
// These map validator tags to user-friendly messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"gte":      "Must be greater than or equal to minimum value",
	"gt":       "Must be greater than minimum value",
	"datetime": "Must be a valid date",
	"oneof":    "Must be one of the allowed values",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Common error types for RFC 7807 Problem Details
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeBadRequest = "bad_request"
	ErrorTypeConflict   = "conflict"
	ErrorTypeTooMany    = "rate_limited"
	ErrorTypeInternal   = "internal_error"
)
