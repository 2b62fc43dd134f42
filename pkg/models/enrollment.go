package models

import "time"

// EnrollmentStatus is the state machine over one contact's execution of a
// graph: active → completed | failed, active ↔ paused.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusPaused    EnrollmentStatus = "paused"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// ABVariant is a persisted A/B test assignment.
type ABVariant string

const (
	VariantA ABVariant = "a"
	VariantB ABVariant = "b"
)

// LogEntry is one audit record per executed step. Entries are append-only
// and never mutated.
type LogEntry struct {
	NodeID     string    `json:"node_id"`
	EnteredAt  time.Time `json:"entered_at"`
	Result     string    `json:"result"`
	NextNodeID string    `json:"next_node_id"`
}

// Enrollment is one contact's live execution instance of a workflow graph.
// At most one enrollment exists per (graph, contact) pair.
type Enrollment struct {
	ID            string           `json:"id"`
	GraphID       string           `json:"graph_id"`
	GraphVersion  int              `json:"graph_version"`
	ContactID     string           `json:"contact_id"`
	CurrentNodeID string           `json:"current_node_id"`
	Status        EnrollmentStatus `json:"status"`

	// ABAssignments persists the variant drawn the first time each abtest
	// node is reached, keyed by node id. Re-entry never re-rolls.
	ABAssignments map[string]ABVariant `json:"ab_assignments,omitempty"`

	// ResumeAt is set while a wait node holds the enrollment paused.
	ResumeAt *time.Time `json:"resume_at,omitempty"`

	ExecutionLog []LogEntry `json:"execution_log"`

	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the enrollment can never step again.
func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentStatusCompleted || e.Status == EnrollmentStatusFailed
}

// DueForResume reports whether a wait-suspended enrollment should be
// re-activated at the given time.
func (e *Enrollment) DueForResume(now time.Time) bool {
	return e.Status == EnrollmentStatusPaused && e.ResumeAt != nil && !e.ResumeAt.After(now)
}
