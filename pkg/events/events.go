// Package events defines the event types exchanged between the trigger
// dispatcher, the workflow engine and the sweep workers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
)

type EventType string

// Topic is the single bus topic all automation events travel on.
const Topic = "automata.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound contact events, produced by the CRM surface.
	ContactActivityEvent      EventType = "contact.activity"
	ContactStatusChangedEvent EventType = "contact.status_changed"

	// Engine lifecycle events.
	EnrollmentSteppedEvent EventType = "enrollment.stepped"
	EnrollmentFailedEvent  EventType = "enrollment.failed"

	// Scheduler and worker events.
	TaskScheduledEvent  EventType = "task.scheduled"
	SweepCompletedEvent EventType = "sweep.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ContactID string         `json:"contact_id,omitempty"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, contactID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ContactID: contactID,
		Metadata:  make(map[string]any),
	}
}

// ContactActivity is emitted when a contact interacts with the CRM: an email
// open or click, a form submission, a logged call or meeting.
type ContactActivity struct {
	BaseEvent

	ActivityType models.ActivityType `json:"activity_type"`
	ActivityData map[string]any      `json:"activity_data,omitempty"`
}

func (e ContactActivity) GetType() EventType {
	return ContactActivityEvent
}

// ContactStatusChanged is emitted when a contact moves through the pipeline.
type ContactStatusChanged struct {
	BaseEvent

	OldStatus models.ContactStatus `json:"old_status"`
	NewStatus models.ContactStatus `json:"new_status"`
}

func (e ContactStatusChanged) GetType() EventType {
	return ContactStatusChangedEvent
}

// EnrollmentStepped is emitted after the engine executes one node of an
// enrollment, whatever the outcome of that node was.
type EnrollmentStepped struct {
	BaseEvent

	EnrollmentID string                  `json:"enrollment_id"`
	GraphID      string                  `json:"graph_id"`
	NodeID       string                  `json:"node_id"`
	Result       string                  `json:"result"`
	NextNodeID   string                  `json:"next_node_id,omitempty"`
	Status       models.EnrollmentStatus `json:"status"`
}

func (e EnrollmentStepped) GetType() EventType {
	return EnrollmentSteppedEvent
}

// EnrollmentFailed is emitted when an enrollment transitions to failed.
type EnrollmentFailed struct {
	BaseEvent

	EnrollmentID string `json:"enrollment_id"`
	GraphID      string `json:"graph_id"`
	NodeID       string `json:"node_id"`
	Error        string `json:"error"`
}

func (e EnrollmentFailed) GetType() EventType {
	return EnrollmentFailedEvent
}

// TaskScheduled is emitted for every task the scheduler persists.
type TaskScheduled struct {
	BaseEvent

	TaskID   string              `json:"task_id"`
	BatchID  string              `json:"batch_id,omitempty"`
	RuleID   string              `json:"rule_id,omitempty"`
	Title    string              `json:"title"`
	Priority models.TaskPriority `json:"priority"`
	DueAt    time.Time           `json:"due_at"`
}

func (e TaskScheduled) GetType() EventType {
	return TaskScheduledEvent
}

// SweepCompleted is emitted after a worker sweep pass finishes.
type SweepCompleted struct {
	BaseEvent

	Sweep      string        `json:"sweep"`
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	DurationMs int64         `json:"duration_ms"`
	Duration   time.Duration `json:"-"`
}

func (e SweepCompleted) GetType() EventType {
	return SweepCompletedEvent
}
