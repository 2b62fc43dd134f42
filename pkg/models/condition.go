package models

import "fmt"

// Operator is a comparison operator usable in a Condition.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorContains           Operator = "contains"
	OperatorNotContains        Operator = "not_contains"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorLessThan           Operator = "less_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorInList             Operator = "in_list"
	OperatorNotInList          Operator = "not_in_list"
	OperatorIsEmpty            Operator = "is_empty"
	OperatorIsNotEmpty         Operator = "is_not_empty"
)

var knownOperators = map[Operator]struct{}{
	OperatorEquals:             {},
	OperatorNotEquals:          {},
	OperatorContains:           {},
	OperatorNotContains:        {},
	OperatorGreaterThan:        {},
	OperatorLessThan:           {},
	OperatorGreaterThanOrEqual: {},
	OperatorLessThanOrEqual:    {},
	OperatorInList:             {},
	OperatorNotInList:          {},
	OperatorIsEmpty:            {},
	OperatorIsNotEmpty:         {},
}

// IsKnown reports whether the operator is one the evaluator understands.
func (o Operator) IsKnown() bool {
	_, ok := knownOperators[o]

	return ok
}

// GroupLogic combines the results of a condition group.
type GroupLogic string

const (
	LogicAnd GroupLogic = "AND"
	LogicOr  GroupLogic = "OR"
)

// Condition compares one contact field against a literal value.
// The field may be a direct attribute ("status"), a dotted path into a
// structured attribute ("custom_profile.city" style traversal), or a
// custom-field key carrying the "custom_" prefix.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// ConditionGroup is a list of conditions combined with AND/OR logic.
// An empty group evaluates to true.
type ConditionGroup struct {
	Conditions []Condition `json:"conditions"`
	Logic      GroupLogic  `json:"logic"`
}

// Validate rejects malformed groups at definition time. Unknown logic values
// are an error here, never a silent default at evaluation time.
func (g *ConditionGroup) Validate() error {
	if g.Logic != LogicAnd && g.Logic != LogicOr {
		return fmt.Errorf("%w: logic must be AND or OR, got %q", ErrInvalidConditionGroup, g.Logic)
	}

	for i, cond := range g.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("%w: condition %d has empty field", ErrInvalidConditionGroup, i)
		}

		if !cond.Operator.IsKnown() {
			return fmt.Errorf("%w: condition %d has unknown operator %q", ErrInvalidConditionGroup, i, cond.Operator)
		}
	}

	return nil
}
