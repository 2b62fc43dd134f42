package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const ruleColumns = `
	id
  , name
  , description
  , trigger_type
  , trigger_config
  , task_title_template
  , task_description_template
  , task_priority
  , delay_hours
  , reminder_offset_hours
  , is_active
  , times_triggered
  , tasks_created
  , created_at
  , updated_at
`

// RuleRepository handles automation rule database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, fmt.Errorf("failed to scan automation rule: %w", err)
	}

	return rule, nil
}

func (r *RuleRepository) List(ctx context.Context, filter persistence.RuleFilter) ([]*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE 1=1`

	args := make([]any, 0, 2)

	if filter.TriggerType != "" {
		args = append(args, filter.TriggerType)
		query += fmt.Sprintf(" AND trigger_type = $%d", len(args))
	}

	if filter.ActiveOnly {
		query += " AND is_active = true"
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation rules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.AutomationRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rules: %w", err)
	}

	return rules, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	now := time.Now().UTC()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	configJSON, err := json.Marshal(rule.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `
		INSERT INTO automation_rules (id, name, description, trigger_type, trigger_config,
			task_title_template, task_description_template, task_priority, delay_hours,
			reminder_offset_hours, is_active, times_triggered, tasks_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			task_title_template = EXCLUDED.task_title_template,
			task_description_template = EXCLUDED.task_description_template,
			task_priority = EXCLUDED.task_priority,
			delay_hours = EXCLUDED.delay_hours,
			reminder_offset_hours = EXCLUDED.reminder_offset_hours,
			is_active = EXCLUDED.is_active,
			times_triggered = EXCLUDED.times_triggered,
			tasks_created = EXCLUDED.tasks_created,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.TriggerType,
		configJSON,
		rule.TaskTitleTemplate,
		rule.TaskDescriptionTemplate,
		rule.TaskPriority,
		rule.DelayHours,
		rule.ReminderOffsetHours,
		rule.IsActive,
		rule.TimesTriggered,
		rule.TasksCreated,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation rule: %w", err)
	}

	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automation_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete automation rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrRuleNotFound
	}

	return nil
}

func scanRule(scanner interface{ Scan(dest ...any) error }) (*models.AutomationRule, error) {
	var (
		rule       models.AutomationRule
		configJSON []byte
	)

	err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.TriggerType,
		&configJSON,
		&rule.TaskTitleTemplate,
		&rule.TaskDescriptionTemplate,
		&rule.TaskPriority,
		&rule.DelayHours,
		&rule.ReminderOffsetHours,
		&rule.IsActive,
		&rule.TimesTriggered,
		&rule.TasksCreated,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &rule.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	return &rule, nil
}
