package models

import "errors"

// Definition-time validation errors. These are rejected when a graph or rule
// is saved and can never reach execution.
var (
	ErrInvalidGraph          = errors.New("invalid workflow graph")
	ErrInvalidConditionGroup = errors.New("invalid condition group")
	ErrInvalidRule           = errors.New("invalid automation rule")
)
