// Package persistence provides standardized error types for persistence operations.
package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrContactNotFound indicates a contact was not found by the given identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrGraphNotFound indicates a workflow graph was not found by the given identifier.
	ErrGraphNotFound = errors.New("workflow graph not found")

	// ErrEnrollmentNotFound indicates an enrollment was not found.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrRuleNotFound indicates an automation rule was not found.
	ErrRuleNotFound = errors.New("automation rule not found")

	// ErrTaskNotFound indicates a scheduled task was not found.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrBatchNotFound indicates a task batch was not found.
	ErrBatchNotFound = errors.New("task batch not found")

	// ErrRecommendationNotFound indicates no active recommendation matches.
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrDuplicateRecommendation indicates an active recommendation of the
	// same kind already exists for the contact.
	ErrDuplicateRecommendation = errors.New("duplicate active recommendation")
)

// IsContactNotFound checks if an error indicates a contact was not found.
func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

// IsGraphNotFound checks if an error indicates a graph was not found.
func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}

// IsEnrollmentNotFound checks if an error indicates an enrollment was not found.
func IsEnrollmentNotFound(err error) bool {
	return errors.Is(err, ErrEnrollmentNotFound)
}

// IsRuleNotFound checks if an error indicates a rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsRecommendationNotFound checks if an error indicates no active
// recommendation matched.
func IsRecommendationNotFound(err error) bool {
	return errors.Is(err, ErrRecommendationNotFound)
}

// IsDuplicateRecommendation checks if an error indicates the de-duplication
// guard rejected an insert.
func IsDuplicateRecommendation(err error) bool {
	return errors.Is(err, ErrDuplicateRecommendation)
}
