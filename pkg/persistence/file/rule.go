package file

import (
	"context"
	"encoding/json"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const ruleKind = "rules"

// RuleRepository stores automation rules.
type RuleRepository struct {
	store *store
}

func (r *RuleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	if err := r.store.read(ruleKind, id, &rule, persistence.ErrRuleNotFound); err != nil {
		return nil, err
	}

	return &rule, nil
}

func (r *RuleRepository) List(_ context.Context, filter persistence.RuleFilter) ([]*models.AutomationRule, error) {
	var rules []*models.AutomationRule

	err := r.store.each(ruleKind, func(data []byte) error {
		var rule models.AutomationRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return err
		}

		if filter.TriggerType != "" && rule.TriggerType != filter.TriggerType {
			return nil
		}

		if filter.ActiveOnly && !rule.IsActive {
			return nil
		}

		rules = append(rules, &rule)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	return r.store.write(ruleKind, rule.ID, rule)
}

func (r *RuleRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(ruleKind, id, persistence.ErrRuleNotFound)
}
