package models

import (
	"fmt"
	"time"
)

// TriggerType identifies which domain event class fires an automation rule.
type TriggerType string

const (
	TriggerStatusChange TriggerType = "status_change"
	TriggerActivity     TriggerType = "activity"
	TriggerCadence      TriggerType = "cadence"
)

// AutomationRule turns a trigger event into a time-delayed, reminder-bearing
// task. Title and description are text/template strings rendered against the
// contact.
type AutomationRule struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"         validate:"required,min=3"`
	Description   string         `json:"description"`
	TriggerType   TriggerType    `json:"trigger_type" validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`

	TaskTitleTemplate       string       `json:"task_title_template" validate:"required"`
	TaskDescriptionTemplate string       `json:"task_description_template"`
	TaskPriority            TaskPriority `json:"task_priority"`
	DelayHours              int          `json:"delay_hours"`
	ReminderOffsetHours     int          `json:"reminder_offset_hours"`

	IsActive bool `json:"is_active"`

	// Audit counters: bumped on every trigger match / every task persisted.
	TimesTriggered int `json:"times_triggered"`
	TasksCreated   int `json:"tasks_created"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate rejects malformed rules at save time.
func (r *AutomationRule) Validate() error {
	switch r.TriggerType {
	case TriggerStatusChange, TriggerActivity, TriggerCadence:
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidRule, r.TriggerType)
	}

	if r.TaskPriority != "" && !r.TaskPriority.IsKnown() {
		return fmt.Errorf("%w: unknown task priority %q", ErrInvalidRule, r.TaskPriority)
	}

	if r.DelayHours < 0 {
		return fmt.Errorf("%w: delay_hours must not be negative", ErrInvalidRule)
	}

	if r.ReminderOffsetHours < 0 {
		return fmt.Errorf("%w: reminder_offset_hours must not be negative", ErrInvalidRule)
	}

	return nil
}
