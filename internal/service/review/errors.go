package review

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Common error types for the review service
var (
	// ErrItemNotFound indicates the item does not exist, is tombstoned, or
	// belongs to another owner.
	ErrItemNotFound = errors.New("review item not found")

	// ErrInvalidGrade indicates a grade outside again, hard, good, easy.
	ErrInvalidGrade = fmt.Errorf("%w: grade must be one of again, hard, good, easy", domain.ErrValidation)

	// ErrInvalidDays indicates a postpone of less than one day.
	ErrInvalidDays = fmt.Errorf("%w: postpone days must be at least 1", domain.ErrValidation)

	// ErrEmptySourceRef indicates a blank source reference.
	ErrEmptySourceRef = fmt.Errorf("%w: source reference cannot be empty", domain.ErrValidation)

	// ErrConcurrencyConflict indicates another write to the item won the race.
	// The caller should re-fetch and retry.
	ErrConcurrencyConflict = errors.New("review item was modified concurrently")

	// ErrStoreUnavailable indicates a transient storage failure. Every operation
	// is idempotent or item-scoped, so the caller may retry it whole.
	ErrStoreUnavailable = errors.New("review store unavailable")
)

// ServiceError wraps errors from the review service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "grade", "ingest")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
