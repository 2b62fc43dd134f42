package conditions

import (
	"testing"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/stretchr/testify/assert"
)

func testContact() *models.Contact {
	followUp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return &models.Contact{
		ID:        "contact-1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Company:   "Analytical Engines Ltd",
		Status:    models.ContactStatusLead,
		LeadScore: 72,
		Tags:      []string{"vip", "newsletter"},
		CustomFields: map[string]any{
			"custom_industry": "manufacturing",
			"custom_seats":    float64(250),
			"custom_profile": map[string]any{
				"region": "emea",
				"tier":   "gold",
			},
		},
		NextFollowUpAt: &followUp,
	}
}

func TestEvaluate_Equals(t *testing.T) {
	contact := testContact()

	assert.True(t, Evaluate(contact, "status", models.OperatorEquals, "lead"))
	assert.False(t, Evaluate(contact, "status", models.OperatorEquals, "active"))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorEquals, 72))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorEquals, float64(72)))

	// Strict typing: a numeric string is not the number.
	assert.False(t, Evaluate(contact, "lead_score", models.OperatorEquals, "72"))

	assert.False(t, Evaluate(contact, "status", models.OperatorNotEquals, "lead"))
	assert.True(t, Evaluate(contact, "status", models.OperatorNotEquals, "lost"))
}

func TestEvaluate_Contains(t *testing.T) {
	contact := testContact()

	assert.True(t, Evaluate(contact, "email", models.OperatorContains, "EXAMPLE"))
	assert.False(t, Evaluate(contact, "email", models.OperatorContains, "gmail"))

	// Non-string operands resolve to the non-match default.
	assert.False(t, Evaluate(contact, "lead_score", models.OperatorContains, "7"))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorNotContains, "7"))
	assert.False(t, Evaluate(contact, "email", models.OperatorContains, 42))

	assert.False(t, Evaluate(contact, "email", models.OperatorNotContains, "example"))
	assert.True(t, Evaluate(contact, "email", models.OperatorNotContains, "gmail"))
}

func TestEvaluate_NumericComparisons(t *testing.T) {
	contact := testContact()

	assert.True(t, Evaluate(contact, "lead_score", models.OperatorGreaterThan, 50))
	assert.False(t, Evaluate(contact, "lead_score", models.OperatorGreaterThan, 72))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorGreaterThanOrEqual, 72))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorLessThan, 100))
	assert.True(t, Evaluate(contact, "lead_score", models.OperatorLessThanOrEqual, "72"))

	// Numeric strings coerce.
	assert.True(t, Evaluate(contact, "custom_seats", models.OperatorGreaterThan, "100"))
}

func TestEvaluate_NumericCoercionFailureIsFalse(t *testing.T) {
	contact := testContact()

	// Field is not numeric.
	assert.False(t, Evaluate(contact, "email", models.OperatorGreaterThan, 10))
	// Value is not numeric.
	assert.False(t, Evaluate(contact, "lead_score", models.OperatorLessThan, "not-a-number"))
	// Absent field.
	assert.False(t, Evaluate(contact, "missing_field", models.OperatorGreaterThanOrEqual, 0))
}

func TestEvaluate_InList(t *testing.T) {
	contact := testContact()

	assert.True(t, Evaluate(contact, "status", models.OperatorInList, []any{"lead", "active"}))
	assert.False(t, Evaluate(contact, "status", models.OperatorInList, []any{"lost"}))
	assert.True(t, Evaluate(contact, "status", models.OperatorInList, []string{"lead"}))

	// Non-list value fails toward "not contained".
	assert.False(t, Evaluate(contact, "status", models.OperatorInList, "lead"))
	assert.True(t, Evaluate(contact, "status", models.OperatorNotInList, "lead"))

	assert.False(t, Evaluate(contact, "status", models.OperatorNotInList, []any{"lead"}))
	assert.True(t, Evaluate(contact, "status", models.OperatorNotInList, []any{"lost", "inactive"}))
}

func TestEvaluate_Empty(t *testing.T) {
	contact := testContact()
	contact.Source = ""

	assert.True(t, Evaluate(contact, "source", models.OperatorIsEmpty, nil))
	assert.False(t, Evaluate(contact, "email", models.OperatorIsEmpty, nil))
	assert.True(t, Evaluate(contact, "email", models.OperatorIsNotEmpty, nil))

	// Absent attributes and unset pointers are empty.
	assert.True(t, Evaluate(contact, "no_such_field", models.OperatorIsEmpty, nil))

	contact.NextFollowUpAt = nil
	assert.True(t, Evaluate(contact, "next_follow_up_at", models.OperatorIsEmpty, nil))
}

func TestEvaluate_UnknownOperatorFailsClosed(t *testing.T) {
	contact := testContact()

	assert.False(t, Evaluate(contact, "status", models.Operator("matches_regex"), ".*"))
}

func TestEvaluate_CustomFields(t *testing.T) {
	contact := testContact()

	assert.True(t, Evaluate(contact, "custom_industry", models.OperatorEquals, "manufacturing"))
	assert.True(t, Evaluate(contact, "custom_seats", models.OperatorGreaterThan, 100))

	// Missing custom field is nil, not an error.
	assert.True(t, Evaluate(contact, "custom_missing", models.OperatorIsEmpty, nil))
	assert.False(t, Evaluate(contact, "custom_missing", models.OperatorEquals, "anything"))
}

func TestEvaluate_DottedPaths(t *testing.T) {
	contact := testContact()

	// A custom-prefixed field is one literal key in the custom-field map,
	// never a path into it.
	assert.True(t, Evaluate(contact, "custom_profile.region", models.OperatorIsEmpty, nil))
	assert.False(t, Evaluate(contact, "custom_profile.region", models.OperatorEquals, "emea"))

	contact.CustomFields["custom_profile.region"] = "emea"
	assert.True(t, Evaluate(contact, "custom_profile.region", models.OperatorEquals, "emea"))

	// Traversal over direct attributes stops at the first non-map hop and
	// yields nil.
	assert.True(t, Evaluate(contact, "email.sub", models.OperatorIsEmpty, nil))
}

func TestEvaluateGroup_EmptyIsVacuousPass(t *testing.T) {
	contact := testContact()

	assert.True(t, EvaluateGroup(contact, nil, models.LogicAnd))
	assert.True(t, EvaluateGroup(contact, []models.Condition{}, models.LogicOr))
	assert.True(t, EvaluateGroup(contact, nil, models.GroupLogic("bogus")))
}

func TestEvaluateGroup_AndOr(t *testing.T) {
	contact := testContact()

	isLead := models.Condition{Field: "status", Operator: models.OperatorEquals, Value: "lead"}
	highScore := models.Condition{Field: "lead_score", Operator: models.OperatorGreaterThan, Value: 90}
	lowScore := models.Condition{Field: "lead_score", Operator: models.OperatorLessThan, Value: 90}

	assert.True(t, EvaluateGroup(contact, []models.Condition{isLead, lowScore}, models.LogicAnd))
	assert.False(t, EvaluateGroup(contact, []models.Condition{isLead, highScore}, models.LogicAnd))
	assert.True(t, EvaluateGroup(contact, []models.Condition{isLead, highScore}, models.LogicOr))
	assert.False(t, EvaluateGroup(contact, []models.Condition{highScore}, models.LogicOr))
}

func TestEvaluateGroup_UnknownLogicFailsClosed(t *testing.T) {
	contact := testContact()
	cond := models.Condition{Field: "status", Operator: models.OperatorEquals, Value: "lead"}

	assert.False(t, EvaluateGroup(contact, []models.Condition{cond}, models.GroupLogic("XOR")))
}
