// Package services provides the application layer in front of persistence:
// automation validation and lifecycle operations consumed by the HTTP API.
package services

import (
	"errors"
	"fmt"
)

// Validation errors map to HTTP 400 responses.
var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrAutomationNil          = errors.New("automation cannot be nil")
	ErrAutomationNameRequired = errors.New("automation name is required")
	ErrStepsRequired          = errors.New("automation must have at least one step")
	ErrInvalidTriggerType     = errors.New("invalid trigger type")
	ErrInvalidStepKind        = errors.New("invalid step kind")
	ErrDuplicateStepPosition  = errors.New("step positions must be unique")
	ErrInvalidBranchTarget    = errors.New("condition branch target does not name a step")
)

// ServiceError wraps a service-level error with operation context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether the error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrAutomationNil) ||
		errors.Is(err, ErrAutomationNameRequired) ||
		errors.Is(err, ErrStepsRequired) ||
		errors.Is(err, ErrInvalidTriggerType) ||
		errors.Is(err, ErrInvalidStepKind) ||
		errors.Is(err, ErrDuplicateStepPosition) ||
		errors.Is(err, ErrInvalidBranchTarget)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}
