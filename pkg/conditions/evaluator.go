// Package conditions evaluates condition groups against contact data.
// Evaluation never returns an error: every edge case resolves to a boolean,
// failing closed for positive operators and open for their negations.
package conditions

import (
	"strconv"
	"strings"

	"github.com/harvestcrm/automata/pkg/models"
)

// CustomFieldPrefix marks a condition field as a custom-field key. The full
// field name, prefix included, is the lookup key in the contact's
// custom-field map.
const CustomFieldPrefix = "custom_"

// Evaluate runs a single condition against a contact. Unknown operators
// evaluate to false.
func Evaluate(contact *models.Contact, field string, operator models.Operator, value any) bool {
	fieldValue := resolveField(contact, field)

	switch operator {
	case models.OperatorEquals:
		return valuesEqual(fieldValue, value)

	case models.OperatorNotEquals:
		return !valuesEqual(fieldValue, value)

	case models.OperatorContains:
		fs, fok := fieldValue.(string)
		vs, vok := value.(string)

		if fok && vok {
			return strings.Contains(strings.ToLower(fs), strings.ToLower(vs))
		}

		return false

	case models.OperatorNotContains:
		fs, fok := fieldValue.(string)
		vs, vok := value.(string)

		if fok && vok {
			return !strings.Contains(strings.ToLower(fs), strings.ToLower(vs))
		}

		return true

	case models.OperatorGreaterThan:
		return compareNumeric(fieldValue, value, func(a, b float64) bool { return a > b })

	case models.OperatorLessThan:
		return compareNumeric(fieldValue, value, func(a, b float64) bool { return a < b })

	case models.OperatorGreaterThanOrEqual:
		return compareNumeric(fieldValue, value, func(a, b float64) bool { return a >= b })

	case models.OperatorLessThanOrEqual:
		return compareNumeric(fieldValue, value, func(a, b float64) bool { return a <= b })

	case models.OperatorInList:
		return inList(fieldValue, value)

	case models.OperatorNotInList:
		list, ok := toList(value)
		if !ok {
			return true
		}

		return !contains(list, fieldValue)

	case models.OperatorIsEmpty:
		return isEmpty(fieldValue)

	case models.OperatorIsNotEmpty:
		return !isEmpty(fieldValue)

	default:
		return false
	}
}

// EvaluateGroup combines conditions with AND/OR logic. An empty list is a
// vacuous pass for any logic value. Unknown logic fails closed; groups are
// validated at definition time so this only guards corrupt state.
func EvaluateGroup(contact *models.Contact, conds []models.Condition, logic models.GroupLogic) bool {
	if len(conds) == 0 {
		return true
	}

	switch logic {
	case models.LogicAnd:
		for _, c := range conds {
			if !Evaluate(contact, c.Field, c.Operator, c.Value) {
				return false
			}
		}

		return true
	case models.LogicOr:
		for _, c := range conds {
			if Evaluate(contact, c.Field, c.Operator, c.Value) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// resolveField looks a condition field up on the contact. Resolution order:
// custom-field map, dotted path traversal, direct attribute. Every miss
// yields nil rather than an error.
func resolveField(contact *models.Contact, field string) any {
	if strings.HasPrefix(field, CustomFieldPrefix) {
		return contact.CustomFields[field]
	}

	if strings.Contains(field, ".") {
		parts := strings.Split(field, ".")

		current, ok := contact.Attr(parts[0])
		if !ok {
			return nil
		}

		for _, part := range parts[1:] {
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			current, ok = m[part]
			if !ok {
				return nil
			}
		}

		return current
	}

	v, ok := contact.Attr(field)
	if !ok {
		return nil
	}

	return v
}

// valuesEqual is strict, type-sensitive equality: the string "5" never
// equals the number 5. Numeric types are normalized to float64 first so the
// same number arriving as int (Go literal) or float64 (JSON) compares equal.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	if aok != bok {
		return false
	}

	return a == b
}

func compareNumeric(fieldValue, value any, cmp func(a, b float64) bool) bool {
	a, ok := coerceFloat(fieldValue)
	if !ok {
		return false
	}

	b, ok := coerceFloat(value)
	if !ok {
		return false
	}

	return cmp(a, b)
}

// toFloat converts native numeric types only.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// coerceFloat additionally parses numeric strings, mirroring how numeric
// operators coerce both operands. Non-numeric input is a non-match, never an
// error.
func coerceFloat(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}

	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	}

	return 0, false
}

func toList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}

		return out, true
	default:
		return nil, false
	}
}

func inList(fieldValue, value any) bool {
	list, ok := toList(value)
	if !ok {
		return false
	}

	return contains(list, fieldValue)
}

func contains(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}

	return false
}

// isEmpty treats nil, the empty string and the absent sentinel (also nil) as
// empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && s == ""
}
