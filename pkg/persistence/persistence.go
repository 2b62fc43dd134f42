// Package persistence provides the data storage abstraction for the
// automation core: graphs, enrollments, rules, tasks, batches and the
// read-only contact store.
package persistence

import (
	"context"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
)

// Persistence aggregates the repositories a backend must provide.
type Persistence interface {
	Contacts() ContactRepository
	Graphs() GraphRepository
	Enrollments() EnrollmentRepository
	Rules() RuleRepository
	Tasks() TaskRepository
	Batches() BatchRepository
	Recommendations() RecommendationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ContactRepository is the read-only view onto the contact store. The CRM
// CRUD layer owns writes; the automation core only reads.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)

	// ListOverdue returns contacts whose next-follow-up timestamp is in the
	// past, excluding lost contacts.
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Contact, error)
}

// GraphRepository stores workflow graph definitions.
type GraphRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowGraph, error)
	List(ctx context.Context) ([]*models.WorkflowGraph, error)
	Save(ctx context.Context, graph *models.WorkflowGraph) error
	Delete(ctx context.Context, id string) error
}

// EnrollmentRepository stores per-contact execution state.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByGraphAndContact(ctx context.Context, graphID, contactID string) (*models.Enrollment, error)
	ListByGraph(ctx context.Context, graphID string) ([]*models.Enrollment, error)

	// ListDueForResume returns paused enrollments whose resume_at has passed.
	ListDueForResume(ctx context.Context, now time.Time) ([]*models.Enrollment, error)

	Save(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	List(ctx context.Context, filter RuleFilter) ([]*models.AutomationRule, error)
	Save(ctx context.Context, rule *models.AutomationRule) error
	Delete(ctx context.Context, id string) error
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	TriggerType models.TriggerType
	ActiveOnly  bool
}

// TaskRepository is the task store interface consumed by the scheduler.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.ScheduledTask, error)
	Create(ctx context.Context, task *models.ScheduledTask) error
	Update(ctx context.Context, task *models.ScheduledTask) error
	ListByContact(ctx context.Context, contactID string) ([]*models.ScheduledTask, error)

	// ListDueReminders returns open tasks whose reminder time has passed and
	// whose reminder has not been sent.
	ListDueReminders(ctx context.Context, now time.Time) ([]*models.ScheduledTask, error)
}

// BatchRepository stores grouping metadata for tasks created together.
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*models.ScheduledBatch, error)
	Create(ctx context.Context, batch *models.ScheduledBatch) error
	ListByContact(ctx context.Context, contactID string) ([]*models.ScheduledBatch, error)

	// IncrementCompleted bumps tasks_completed by one. It never decrements.
	IncrementCompleted(ctx context.Context, id string) error
}

// RecommendationRepository stores the contact-scoped markers used for
// trigger de-duplication.
type RecommendationRepository interface {
	// Create persists a new recommendation. Backends with a uniqueness
	// guarantee return ErrDuplicateRecommendation when an active one of the
	// same kind already exists for the contact.
	Create(ctx context.Context, rec *models.Recommendation) error

	// FindActive returns the non-dismissed, non-expired recommendation of
	// the given kind for the contact, or ErrRecommendationNotFound.
	FindActive(ctx context.Context, contactID, kind string, now time.Time) (*models.Recommendation, error)

	Dismiss(ctx context.Context, id string) error
}
