package models

import "time"

// TaskPriority orders scheduled tasks for the owning user.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// IsKnown reports whether the priority is one of the defined levels.
func (p TaskPriority) IsKnown() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// TaskStatus is the lifecycle state of a scheduled task.
type TaskStatus string

const (
	TaskStatusTodo      TaskStatus = "todo"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// ScheduledTask is a reminder-bearing task produced by the scheduler and
// owned by the task store.
type ScheduledTask struct {
	ID          string       `json:"id"`
	ContactID   string       `json:"contact_id"`
	BatchID     string       `json:"batch_id,omitempty"`
	Title       string       `json:"title"    validate:"required"`
	Description string       `json:"description"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`

	DueAt           time.Time  `json:"due_at"`
	ReminderEnabled bool       `json:"reminder_enabled"`
	ReminderAt      time.Time  `json:"reminder_at"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReminderDue reports whether the reminder should fire at the given time.
func (t *ScheduledTask) ReminderDue(now time.Time) bool {
	return t.Status == TaskStatusTodo &&
		t.ReminderEnabled &&
		t.ReminderSentAt == nil &&
		!t.ReminderAt.After(now)
}

// ScheduledBatch groups tasks created together, e.g. a follow-up sequence.
// tasks_completed only ever increments.
type ScheduledBatch struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	ContactID      string     `json:"contact_id"`
	TasksCount     int        `json:"tasks_count"`
	TasksCompleted int        `json:"tasks_completed"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// IsCompleted derives batch completion; an empty batch is never complete.
func (b *ScheduledBatch) IsCompleted() bool {
	return b.TasksCount > 0 && b.TasksCompleted >= b.TasksCount
}

// Recommendation is a contact-scoped marker the dispatcher uses for trigger
// de-duplication: while a non-dismissed, non-expired recommendation of a kind
// exists for a contact, identical triggers are suppressed.
type Recommendation struct {
	ID          string    `json:"id"`
	ContactID   string    `json:"contact_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Dismissed   bool      `json:"dismissed"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsActive reports whether the recommendation still suppresses duplicates.
func (r *Recommendation) IsActive(now time.Time) bool {
	return !r.Dismissed && r.ExpiresAt.After(now)
}
