package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/template"
)

// Rule manages automation rule definitions. Task templates are parsed at
// save time so rendering failures never surface during trigger processing.
type Rule struct {
	persistence persistence.Persistence
}

// NewRule creates a new rule service.
func NewRule(p persistence.Persistence) *Rule {
	return &Rule{persistence: p}
}

// List returns rules matching the filter.
func (r *Rule) List(ctx context.Context, filter persistence.RuleFilter) ([]*models.AutomationRule, error) {
	return r.persistence.Rules().List(ctx, filter)
}

// FetchByID retrieves a rule by its ID.
func (r *Rule) FetchByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	return r.persistence.Rules().GetByID(ctx, id)
}

// Create adds a new automation rule.
func (r *Rule) Create(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if rule == nil {
		return nil, ErrRuleNil
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.TimesTriggered = 0
	rule.TasksCreated = 0

	if err := r.validate(rule); err != nil {
		return nil, err
	}

	if err := r.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return rule, nil
}

// Update modifies an existing rule. Audit counters carry over.
func (r *Rule) Update(ctx context.Context, ruleID string, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if rule == nil {
		return nil, ErrRuleNil
	}

	existing, err := r.persistence.Rules().GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	rule.ID = ruleID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	rule.TimesTriggered = existing.TimesTriggered
	rule.TasksCreated = existing.TasksCreated

	if err := r.validate(rule); err != nil {
		return nil, err
	}

	if err := r.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	return rule, nil
}

// Delete removes a rule by its ID.
func (r *Rule) Delete(ctx context.Context, ruleID string) error {
	return r.persistence.Rules().Delete(ctx, ruleID)
}

func (r *Rule) validate(rule *models.AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	if rule.TaskTitleTemplate == "" {
		return NewValidationError(
			"validateRule",
			"TITLE_TEMPLATE_REQUIRED",
			"task_title_template is required",
			ErrInvalidRequest,
		)
	}

	if _, err := template.Parse(rule.TaskTitleTemplate); err != nil {
		return NewValidationError(
			"validateRule",
			"INVALID_TITLE_TEMPLATE",
			fmt.Sprintf("task_title_template: %v", err),
			ErrInvalidRequest,
		)
	}

	if rule.TaskDescriptionTemplate != "" {
		if _, err := template.Parse(rule.TaskDescriptionTemplate); err != nil {
			return NewValidationError(
				"validateRule",
				"INVALID_DESCRIPTION_TEMPLATE",
				fmt.Sprintf("task_description_template: %v", err),
				ErrInvalidRequest,
			)
		}
	}

	return nil
}
