// Package scheduler turns trigger events, rule configuration and named delay
// sequences into concrete due/reminder timestamps and persists the resulting
// tasks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/template"
)

const (
	// DefaultDueDelay applies when a task is scheduled without an explicit
	// due time.
	DefaultDueDelay = 24 * time.Hour

	// catchUpDue is how soon an overdue catch-up task is due once created.
	catchUpDue = 4 * time.Hour

	// recurringTaskCount is how many future cadence touchpoints are kept
	// scheduled ahead.
	recurringTaskCount = 3

	// catchUpKind marks the recommendation guarding overdue catch-up tasks
	// against re-creation on every sweep.
	catchUpKind = "overdue_catchup"

	// catchUpWindow is how long that guard suppresses further catch-ups.
	catchUpWindow = 7 * 24 * time.Hour
)

// Named follow-up sequences.
const (
	SequenceStandard   = "standard"
	SequenceAggressive = "aggressive"
	SequenceGentle     = "gentle"

	// sequenceReminderOffset applies to every task in a sequence.
	sequenceReminderOffset = 2 * time.Hour
)

// sequenceStep is one row of a named sequence table: a day offset from the
// anchor time plus the fixed title and priority for that touch.
type sequenceStep struct {
	days     int
	title    string
	priority models.TaskPriority
}

var sequenceSteps = map[string][]sequenceStep{
	SequenceStandard: {
		{days: 1, title: "Initial follow-up", priority: models.PriorityHigh},
		{days: 3, title: "Second follow-up", priority: models.PriorityMedium},
		{days: 7, title: "Third follow-up", priority: models.PriorityMedium},
		{days: 14, title: "Final follow-up", priority: models.PriorityLow},
	},
	SequenceAggressive: {
		{days: 1, title: "Immediate follow-up", priority: models.PriorityUrgent},
		{days: 2, title: "Quick check-in", priority: models.PriorityHigh},
		{days: 4, title: "Third touch", priority: models.PriorityHigh},
		{days: 7, title: "One week follow-up", priority: models.PriorityMedium},
	},
	SequenceGentle: {
		{days: 3, title: "Gentle check-in", priority: models.PriorityLow},
		{days: 7, title: "One week follow-up", priority: models.PriorityLow},
		{days: 14, title: "Two week follow-up", priority: models.PriorityLow},
		{days: 30, title: "Monthly check-in", priority: models.PriorityLow},
	},
}

var cadenceDays = map[models.Cadence]int{
	models.CadenceDaily:     1,
	models.CadenceWeekly:    7,
	models.CadenceMonthly:   30,
	models.CadenceQuarterly: 90,
	models.CadenceAnnual:    365,
}

// defaultCadenceDays applies to cadence values missing from the table.
const defaultCadenceDays = 30

// taskTemplate is one row of the fixed status-change / activity lookup
// tables. Title and description are text/template strings rendered against
// the contact.
type taskTemplate struct {
	title       string
	description string
	priority    models.TaskPriority
	dueInHours  int
}

var statusChangeTemplates = map[models.ContactStatus]taskTemplate{
	models.ContactStatusLead: {
		title:       "Qualify new lead",
		description: "Reach out to qualify {{.FirstName}} as a potential customer",
		priority:    models.PriorityHigh,
		dueInHours:  24,
	},
	models.ContactStatusActive: {
		title:       "Onboard new customer",
		description: "Send onboarding materials and schedule kickoff with {{.FirstName}}",
		priority:    models.PriorityUrgent,
		dueInHours:  4,
	},
	models.ContactStatusInactive: {
		title:       "Re-engage inactive contact",
		description: "Create re-engagement campaign for {{.FirstName}}",
		priority:    models.PriorityMedium,
		dueInHours:  48,
	},
	models.ContactStatusLost: {
		title:       "Exit interview request",
		description: "Request feedback from {{.FirstName}} about why they left",
		priority:    models.PriorityLow,
		dueInHours:  72,
	},
}

var activityTemplates = map[models.ActivityType]taskTemplate{
	models.ActivityEmailOpened: {
		title:       "Follow up on email engagement",
		description: "{{.FirstName}} opened your email - follow up while engaged",
		priority:    models.PriorityHigh,
		dueInHours:  4,
	},
	models.ActivityEmailClicked: {
		title:       "High-priority follow up - clicked link",
		description: "{{.FirstName}} clicked a link in your email - HOT lead!",
		priority:    models.PriorityUrgent,
		dueInHours:  2,
	},
	models.ActivityFormSubmitted: {
		title:       "Follow up on form submission",
		description: "{{.FirstName}} submitted a form - respond quickly",
		priority:    models.PriorityUrgent,
		dueInHours:  1,
	},
	models.ActivityMeeting: {
		title:       "Post-meeting follow-up",
		description: "Send follow-up materials and next steps to {{.FirstName}}",
		priority:    models.PriorityHigh,
		dueInHours:  24,
	},
	models.ActivityCallMade: {
		title:       "Call follow-up",
		description: "Send summary and action items from call with {{.FirstName}}",
		priority:    models.PriorityMedium,
		dueInHours:  12,
	},
}

// TaskSpec carries the caller-supplied fields of one task. A nil DueAt
// defaults to DefaultDueDelay from now.
type TaskSpec struct {
	Title          string
	Description    string
	Priority       models.TaskPriority
	DueAt          *time.Time
	ReminderOffset time.Duration
	BatchID        string
	RuleID         string
}

type Scheduler struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger

	// Injectable for tests.
	now func() time.Time
}

// NewScheduler creates a task scheduler. The publisher may be nil; task
// events are then skipped.
func NewScheduler(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "scheduler"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleTask persists one task for the contact. reminder_at is derived as
// due_at minus the reminder offset; a zero offset disables the reminder.
func (s *Scheduler) ScheduleTask(ctx context.Context, contact *models.Contact, spec TaskSpec) (*models.ScheduledTask, error) {
	now := s.now()

	dueAt := now.Add(DefaultDueDelay)
	if spec.DueAt != nil {
		dueAt = *spec.DueAt
	}

	priority := spec.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	task := &models.ScheduledTask{
		ID:          uuid.NewString(),
		ContactID:   contact.ID,
		BatchID:     spec.BatchID,
		Title:       spec.Title,
		Description: spec.Description,
		Priority:    priority,
		Status:      models.TaskStatusTodo,
		DueAt:       dueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if spec.ReminderOffset > 0 {
		task.ReminderEnabled = true
		task.ReminderAt = dueAt.Add(-spec.ReminderOffset)
	}

	if err := s.persistence.Tasks().Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publishScheduled(ctx, task, spec.RuleID)

	return task, nil
}

// ScheduleSequence creates one task per row of the named sequence table,
// anchored at now plus the start delay, grouped under a batch. Unknown
// sequence names fall back to the standard table. A failed row is logged and
// does not abort its siblings; the batch records the number actually
// produced.
func (s *Scheduler) ScheduleSequence(ctx context.Context, contact *models.Contact, sequence string, startDelayHours int) (*models.ScheduledBatch, []*models.ScheduledTask, error) {
	steps, ok := sequenceSteps[sequence]
	if !ok {
		s.logger.WarnContext(ctx, "Unknown sequence, using standard", "sequence", sequence)

		sequence = SequenceStandard
		steps = sequenceSteps[SequenceStandard]
	}

	now := s.now()
	start := now.Add(time.Duration(startDelayHours) * time.Hour)
	batchID := uuid.NewString()

	tasks := make([]*models.ScheduledTask, 0, len(steps))

	for _, step := range steps {
		dueAt := start.Add(time.Duration(step.days) * 24 * time.Hour)

		task, err := s.ScheduleTask(ctx, contact, TaskSpec{
			Title:          step.title,
			Description:    fmt.Sprintf("Automated %s follow-up sequence for %s", sequence, contact.FullName()),
			Priority:       step.priority,
			DueAt:          &dueAt,
			ReminderOffset: sequenceReminderOffset,
			BatchID:        batchID,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule sequence task", "contact_id", contact.ID, "sequence", sequence, "offset_days", step.days, "error", err)

			continue
		}

		tasks = append(tasks, task)
	}

	batch := &models.ScheduledBatch{
		ID:         batchID,
		Name:       fmt.Sprintf("%s sequence for %s", sequence, contact.FullName()),
		Type:       "sequence",
		ContactID:  contact.ID,
		TasksCount: len(tasks),
		CreatedAt:  now,
	}

	if err := s.persistence.Batches().Create(ctx, batch); err != nil {
		return nil, tasks, fmt.Errorf("failed to create batch: %w", err)
	}

	return batch, tasks, nil
}

// RecurringTemplate overrides the default fields of cadence touchpoint
// tasks. Zero-valued fields fall back to the built-in defaults.
type RecurringTemplate struct {
	Title       string
	Description string
	Priority    models.TaskPriority
}

// ScheduleRecurring generates the next few cadence touchpoints for the
// contact at now + cadence_days * k. Cadence none produces no tasks; a
// cadence missing from the table falls back to a monthly rhythm.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, contact *models.Contact, cadence models.Cadence, tmpl RecurringTemplate) ([]*models.ScheduledTask, error) {
	if cadence == "" || cadence == models.CadenceNone {
		return nil, nil
	}

	days, ok := cadenceDays[cadence]
	if !ok {
		days = defaultCadenceDays
	}

	title := tmpl.Title
	if title == "" {
		title = fmt.Sprintf("%s check-in with %s", titleCase(string(cadence)), contact.FirstName)
	}

	description := tmpl.Description
	if description == "" {
		description = fmt.Sprintf("Scheduled %s touchpoint", cadence)
	}

	now := s.now()
	tasks := make([]*models.ScheduledTask, 0, recurringTaskCount)

	for k := 1; k <= recurringTaskCount; k++ {
		dueAt := now.Add(time.Duration(days*k) * 24 * time.Hour)

		task, err := s.ScheduleTask(ctx, contact, TaskSpec{
			Title:          title,
			Description:    description,
			Priority:       tmpl.Priority,
			DueAt:          &dueAt,
			ReminderOffset: 24 * time.Hour,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule recurring task", "contact_id", contact.ID, "cadence", cadence, "error", err)

			continue
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// SweepOverdue creates exactly one catch-up task per contact whose
// next-follow-up time has passed, prioritized by how long overdue they are.
// A recommendation marker suppresses re-creation on subsequent sweeps while
// the previous catch-up is still fresh. Returns the number of tasks created.
func (s *Scheduler) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()

	contacts, err := s.persistence.Contacts().ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue contacts: %w", err)
	}

	created := 0

	for _, contact := range contacts {
		daysOverdue := int(now.Sub(*contact.NextFollowUpAt).Hours() / 24)

		err := s.persistence.Recommendations().Create(ctx, &models.Recommendation{
			ID:        uuid.NewString(),
			ContactID: contact.ID,
			Kind:      catchUpKind,
			Title:     fmt.Sprintf("Catch up with %s", contact.FullName()),
			ExpiresAt: now.Add(catchUpWindow),
			CreatedAt: now,
		})
		if persistence.IsDuplicateRecommendation(err) {
			continue
		}

		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to create catch-up marker", "contact_id", contact.ID, "error", err)

			continue
		}

		dueAt := now.Add(catchUpDue)

		_, err = s.ScheduleTask(ctx, contact, TaskSpec{
			Title:          fmt.Sprintf("Overdue follow-up with %s", contact.FullName()),
			Description:    fmt.Sprintf("Follow-up is %d days overdue. Reach out today.", daysOverdue),
			Priority:       OverduePriority(daysOverdue),
			DueAt:          &dueAt,
			ReminderOffset: time.Hour,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule catch-up task", "contact_id", contact.ID, "error", err)

			continue
		}

		created++
	}

	return created, nil
}

// ScheduleForStatusChange applies the fixed status lookup table. A no-op
// transition (old == new) or a status without a table entry schedules
// nothing and returns nil.
func (s *Scheduler) ScheduleForStatusChange(ctx context.Context, contact *models.Contact, oldStatus, newStatus models.ContactStatus) (*models.ScheduledTask, error) {
	if oldStatus == newStatus {
		return nil, nil
	}

	tmpl, ok := statusChangeTemplates[newStatus]
	if !ok {
		return nil, nil
	}

	return s.scheduleFromTemplate(ctx, contact, tmpl)
}

// ScheduleForActivity applies the fixed activity lookup table. Activity
// types without a table entry schedule nothing and return nil.
func (s *Scheduler) ScheduleForActivity(ctx context.Context, contact *models.Contact, activityType models.ActivityType) (*models.ScheduledTask, error) {
	tmpl, ok := activityTemplates[activityType]
	if !ok {
		return nil, nil
	}

	return s.scheduleFromTemplate(ctx, contact, tmpl)
}

// ScheduleForRule renders the rule's task templates against the contact and
// schedules the resulting task with the rule's delay and reminder offset.
func (s *Scheduler) ScheduleForRule(ctx context.Context, rule *models.AutomationRule, contact *models.Contact) (*models.ScheduledTask, error) {
	title, err := template.RenderContact(rule.TaskTitleTemplate, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to render title for rule %s: %w", rule.ID, err)
	}

	description := ""
	if rule.TaskDescriptionTemplate != "" {
		description, err = template.RenderContact(rule.TaskDescriptionTemplate, contact)
		if err != nil {
			return nil, fmt.Errorf("failed to render description for rule %s: %w", rule.ID, err)
		}
	}

	spec := TaskSpec{
		Title:          title,
		Description:    description,
		Priority:       rule.TaskPriority,
		ReminderOffset: time.Duration(rule.ReminderOffsetHours) * time.Hour,
		RuleID:         rule.ID,
	}

	if rule.DelayHours > 0 {
		dueAt := s.now().Add(time.Duration(rule.DelayHours) * time.Hour)
		spec.DueAt = &dueAt
	}

	return s.ScheduleTask(ctx, contact, spec)
}

func (s *Scheduler) scheduleFromTemplate(ctx context.Context, contact *models.Contact, tmpl taskTemplate) (*models.ScheduledTask, error) {
	title, err := template.RenderContact(tmpl.title, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to render task title: %w", err)
	}

	description, err := template.RenderContact(tmpl.description, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to render task description: %w", err)
	}

	dueAt := s.now().Add(time.Duration(tmpl.dueInHours) * time.Hour)

	return s.ScheduleTask(ctx, contact, TaskSpec{
		Title:          title,
		Description:    description,
		Priority:       tmpl.priority,
		DueAt:          &dueAt,
		ReminderOffset: time.Hour,
	})
}

// OverduePriority classifies a catch-up task by days overdue.
func OverduePriority(daysOverdue int) models.TaskPriority {
	switch {
	case daysOverdue > 30:
		return models.PriorityUrgent
	case daysOverdue > 14:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

func (s *Scheduler) publishScheduled(ctx context.Context, task *models.ScheduledTask, ruleID string) {
	if s.publisher == nil {
		return
	}

	event := events.TaskScheduled{
		BaseEvent: events.NewBaseEvent(events.TaskScheduledEvent, task.ContactID),
		TaskID:    task.ID,
		BatchID:   task.BatchID,
		RuleID:    ruleID,
		Title:     task.Title,
		Priority:  task.Priority,
		DueAt:     task.DueAt,
	}

	if err := s.publisher.Publish(ctx, task.ContactID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish task event", "task_id", task.ID, "error", err)
	}
}
