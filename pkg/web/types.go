// Package web provides the REST management surface over graphs, rules,
// enrollments and scheduled tasks.
package web

import "github.com/harvestcrm/automata/pkg/models"

// CreateGraphRequest is the request body for creating a workflow graph.
type CreateGraphRequest struct {
	Name        string                  `json:"name"          validate:"required,min=3"`
	Description string                  `json:"description"`
	Nodes       map[string]*models.Node `json:"nodes"         validate:"required"`
	EntryNodeID string                  `json:"entry_node_id" validate:"required"`
	Owner       string                  `json:"owner"`
}

// UpdateGraphRequest is the request body for updating a draft graph. All
// fields are optional to support partial updates.
type UpdateGraphRequest struct {
	Name        *string                 `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string                 `json:"description,omitempty"`
	Nodes       map[string]*models.Node `json:"nodes,omitempty"`
	EntryNodeID *string                 `json:"entry_node_id,omitempty"`
}

// CreateRuleRequest is the request body for creating an automation rule.
type CreateRuleRequest struct {
	Name                    string              `json:"name"                 validate:"required,min=3"`
	Description             string              `json:"description"`
	TriggerType             models.TriggerType  `json:"trigger_type"         validate:"required"`
	TriggerConfig           map[string]any      `json:"trigger_config,omitempty"`
	TaskTitleTemplate       string              `json:"task_title_template"  validate:"required"`
	TaskDescriptionTemplate string              `json:"task_description_template"`
	TaskPriority            models.TaskPriority `json:"task_priority"`
	DelayHours              int                 `json:"delay_hours"          validate:"min=0"`
	ReminderOffsetHours     int                 `json:"reminder_offset_hours" validate:"min=0"`
	IsActive                bool                `json:"is_active"`
}

// UpdateRuleRequest is the request body for updating a rule. All fields are
// optional.
type UpdateRuleRequest struct {
	Name                    *string              `json:"name,omitempty" validate:"omitempty,min=3"`
	Description             *string              `json:"description,omitempty"`
	TriggerType             *models.TriggerType  `json:"trigger_type,omitempty"`
	TriggerConfig           map[string]any       `json:"trigger_config,omitempty"`
	TaskTitleTemplate       *string              `json:"task_title_template,omitempty"`
	TaskDescriptionTemplate *string              `json:"task_description_template,omitempty"`
	TaskPriority            *models.TaskPriority `json:"task_priority,omitempty"`
	DelayHours              *int                 `json:"delay_hours,omitempty" validate:"omitempty,min=0"`
	ReminderOffsetHours     *int                 `json:"reminder_offset_hours,omitempty" validate:"omitempty,min=0"`
	IsActive                *bool                `json:"is_active,omitempty"`
}

// EnrollRequest is the request body for enrolling a contact on a graph.
type EnrollRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
}

// TestConditionRequest is the request body for the condition debugging
// endpoint.
type TestConditionRequest struct {
	ContactID string                `json:"contact_id" validate:"required"`
	Group     models.ConditionGroup `json:"group"      validate:"required"`
}

// ActivityTriggerRequest reports a contact activity from the CRUD layer.
type ActivityTriggerRequest struct {
	ContactID    string              `json:"contact_id"    validate:"required"`
	ActivityType models.ActivityType `json:"activity_type" validate:"required"`
}

// StatusChangeTriggerRequest reports a contact pipeline transition.
type StatusChangeTriggerRequest struct {
	ContactID string               `json:"contact_id" validate:"required"`
	OldStatus models.ContactStatus `json:"old_status" validate:"required"`
	NewStatus models.ContactStatus `json:"new_status" validate:"required"`
}
