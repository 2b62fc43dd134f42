// Package services provides the management surface over graphs, rules and
// enrollments consumed by the API layer.
package services

import (
	"errors"
	"fmt"

	"github.com/harvestcrm/automata/pkg/models"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrGraphNil          = errors.New("graph cannot be nil")
	ErrGraphNameRequired = errors.New("graph name is required")
	ErrRuleNil           = errors.New("rule cannot be nil")

	// Business logic conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published graph")
	ErrAlreadyPublished      = errors.New("graph is already published")
	ErrCannotPublishArchived = errors.New("cannot publish archived graph")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
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

// IsValidationError checks if an error should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrGraphNil) ||
		errors.Is(err, ErrGraphNameRequired) ||
		errors.Is(err, ErrRuleNil) ||
		errors.Is(err, models.ErrInvalidGraph) ||
		errors.Is(err, models.ErrInvalidRule) ||
		errors.Is(err, models.ErrInvalidConditionGroup)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrAlreadyPublished) ||
		errors.Is(err, ErrCannotPublishArchived)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
