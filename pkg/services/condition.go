package services

import (
	"context"
	"fmt"

	"github.com/harvestcrm/automata/pkg/conditions"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

// ConditionTester runs a condition group against a single contact for
// debugging rule and decision-node setups.
type ConditionTester struct {
	persistence persistence.Persistence
}

// NewConditionTester creates a new condition tester.
func NewConditionTester(p persistence.Persistence) *ConditionTester {
	return &ConditionTester{persistence: p}
}

// ConditionOutcome is the per-condition breakdown of a test run.
type ConditionOutcome struct {
	Condition models.Condition `json:"condition"`
	Passed    bool             `json:"passed"`
}

// TestResult is the full outcome of testing a group against one contact.
type TestResult struct {
	ContactID  string             `json:"contact_id"`
	Logic      models.GroupLogic  `json:"logic"`
	Passed     bool               `json:"passed"`
	Conditions []ConditionOutcome `json:"conditions"`
}

// Test evaluates the group against the contact and returns both the group
// result and each condition's individual outcome.
func (t *ConditionTester) Test(ctx context.Context, contactID string, group models.ConditionGroup) (*TestResult, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}

	contact, err := t.persistence.Contacts().GetByID(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact %s: %w", contactID, err)
	}

	result := &TestResult{
		ContactID:  contactID,
		Logic:      group.Logic,
		Passed:     conditions.EvaluateGroup(contact, group.Conditions, group.Logic),
		Conditions: make([]ConditionOutcome, 0, len(group.Conditions)),
	}

	for _, cond := range group.Conditions {
		result.Conditions = append(result.Conditions, ConditionOutcome{
			Condition: cond,
			Passed:    conditions.Evaluate(contact, cond.Field, cond.Operator, cond.Value),
		})
	}

	return result, nil
}
