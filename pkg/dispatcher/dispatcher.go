// Package dispatcher maps incoming domain events (activity occurred, status
// changed, schedule tick) to scheduler calls or workflow enrollments, with
// per-contact de-duplication.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/otelhelper"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/scheduler"
)

// dedupWindow is how long an identical trigger for the same contact is
// suppressed after one has been processed.
const dedupWindow = 24 * time.Hour

// Trigger config keys recognized on automation rules.
const (
	configActivityType = "activity_type"
	configNewStatus    = "new_status"
	configGraphID      = "graph_id"
)

type Dispatcher struct {
	persistence persistence.Persistence
	scheduler   *scheduler.Scheduler
	engine      *engine.Engine
	logger      *slog.Logger
	tracer      trace.Tracer

	// Injectable for tests.
	now func() time.Time
}

func NewDispatcher(p persistence.Persistence, s *scheduler.Scheduler, e *engine.Engine, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		scheduler:   s,
		engine:      e,
		logger:      logger.With("module", "dispatcher"),
		tracer:      otel.Tracer("automata/dispatcher"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the dispatcher to the inbound contact events on the
// bus.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.ContactActivityEvent, func(ctx context.Context, event any) error {
		activity, ok := event.(*events.ContactActivity)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return d.OnActivity(ctx, activity.ContactID, activity.ActivityType)
	}); err != nil {
		return err
	}

	return bus.Handle(events.ContactStatusChangedEvent, func(ctx context.Context, event any) error {
		change, ok := event.(*events.ContactStatusChanged)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return d.OnStatusChange(ctx, change.ContactID, change.OldStatus, change.NewStatus)
	})
}

// OnActivity processes one contact activity: the fixed activity table plus
// any matching activity-triggered rules. A second identical activity inside
// the de-duplication window is a no-op.
func (d *Dispatcher) OnActivity(ctx context.Context, contactID string, activityType models.ActivityType) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "trigger.activity",
		attribute.String(otelhelper.ContactIDKey, contactID),
		attribute.String("automata.activity.type", string(activityType)),
	)
	defer span.End()

	contact, err := d.persistence.Contacts().GetByID(ctx, contactID)
	if err != nil {
		err = fmt.Errorf("failed to fetch contact %s: %w", contactID, err)
		otelhelper.SetError(span, err)

		return err
	}

	if !d.claim(ctx, contact, "activity:"+string(activityType), fmt.Sprintf("Activity %s by %s", activityType, contact.FullName())) {
		d.logger.DebugContext(ctx, "Duplicate activity trigger suppressed", "contact_id", contactID, "activity_type", activityType)

		return nil
	}

	if _, err := d.scheduler.ScheduleForActivity(ctx, contact, activityType); err != nil {
		d.logger.ErrorContext(ctx, "Failed to schedule activity task", "contact_id", contactID, "activity_type", activityType, "error", err)
	}

	return d.applyRules(ctx, contact, models.TriggerActivity, func(rule *models.AutomationRule) bool {
		want, ok := rule.TriggerConfig[configActivityType].(string)

		return !ok || want == string(activityType)
	})
}

// OnStatusChange processes one pipeline transition. A no-op update (old ==
// new) never fires automation.
func (d *Dispatcher) OnStatusChange(ctx context.Context, contactID string, oldStatus, newStatus models.ContactStatus) error {
	if oldStatus == newStatus {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "trigger.status_change",
		attribute.String(otelhelper.ContactIDKey, contactID),
		attribute.String("automata.status.old", string(oldStatus)),
		attribute.String("automata.status.new", string(newStatus)),
	)
	defer span.End()

	contact, err := d.persistence.Contacts().GetByID(ctx, contactID)
	if err != nil {
		err = fmt.Errorf("failed to fetch contact %s: %w", contactID, err)
		otelhelper.SetError(span, err)

		return err
	}

	if !d.claim(ctx, contact, "status:"+string(newStatus), fmt.Sprintf("%s moved to %s", contact.FullName(), newStatus)) {
		d.logger.DebugContext(ctx, "Duplicate status trigger suppressed", "contact_id", contactID, "new_status", newStatus)

		return nil
	}

	if _, err := d.scheduler.ScheduleForStatusChange(ctx, contact, oldStatus, newStatus); err != nil {
		d.logger.ErrorContext(ctx, "Failed to schedule status task", "contact_id", contactID, "new_status", newStatus, "error", err)
	}

	// A contact activating with a cadence gets its touchpoints planned ahead.
	if newStatus == models.ContactStatusActive && contact.Cadence != models.CadenceNone && contact.Cadence != "" {
		if d.claim(ctx, contact, "cadence:"+string(contact.Cadence), fmt.Sprintf("Cadence plan for %s", contact.FullName())) {
			if _, err := d.scheduler.ScheduleRecurring(ctx, contact, contact.Cadence, scheduler.RecurringTemplate{}); err != nil {
				d.logger.ErrorContext(ctx, "Failed to schedule cadence tasks", "contact_id", contactID, "error", err)
			}
		}
	}

	return d.applyRules(ctx, contact, models.TriggerStatusChange, func(rule *models.AutomationRule) bool {
		want, ok := rule.TriggerConfig[configNewStatus].(string)

		return !ok || want == string(newStatus)
	})
}

// OnScheduleTick runs the periodic scheduling work: the overdue catch-up
// sweep. Wait resumptions and reminder firing belong to the worker pool.
func (d *Dispatcher) OnScheduleTick(ctx context.Context) (int, error) {
	return d.scheduler.SweepOverdue(ctx)
}

// applyRules runs every active matching rule of the trigger type against the
// contact: bump times_triggered, schedule (or enroll), bump tasks_created. A
// failing rule does not abort its siblings.
func (d *Dispatcher) applyRules(ctx context.Context, contact *models.Contact, triggerType models.TriggerType, matches func(*models.AutomationRule) bool) error {
	rules, err := d.persistence.Rules().List(ctx, persistence.RuleFilter{TriggerType: triggerType, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	for _, rule := range rules {
		if !matches(rule) {
			continue
		}

		if !d.claim(ctx, contact, "rule:"+rule.ID, rule.Name) {
			d.logger.DebugContext(ctx, "Duplicate rule trigger suppressed", "contact_id", contact.ID, "rule_id", rule.ID)

			continue
		}

		rule.TimesTriggered++

		if graphID, ok := rule.TriggerConfig[configGraphID].(string); ok && graphID != "" {
			if _, err := d.engine.Enroll(ctx, graphID, contact.ID); err != nil {
				d.logger.ErrorContext(ctx, "Failed to enroll from rule", "rule_id", rule.ID, "graph_id", graphID, "contact_id", contact.ID, "error", err)
			}
		} else {
			task, err := d.scheduler.ScheduleForRule(ctx, rule, contact)
			if err != nil {
				d.logger.ErrorContext(ctx, "Failed to schedule from rule", "rule_id", rule.ID, "contact_id", contact.ID, "error", err)
			} else if task != nil {
				rule.TasksCreated++
			}
		}

		if err := d.persistence.Rules().Save(ctx, rule); err != nil {
			d.logger.ErrorContext(ctx, "Failed to update rule counters", "rule_id", rule.ID, "error", err)
		}
	}

	return nil
}

// claim records the de-duplication marker for (contact, kind). It returns
// false when an active marker already exists, i.e. the trigger was already
// processed inside the window.
func (d *Dispatcher) claim(ctx context.Context, contact *models.Contact, kind, title string) bool {
	now := d.now()

	err := d.persistence.Recommendations().Create(ctx, &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Kind:      kind,
		Title:     title,
		ExpiresAt: now.Add(dedupWindow),
		CreatedAt: now,
	})
	if persistence.IsDuplicateRecommendation(err) {
		return false
	}

	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to record trigger marker", "contact_id", contact.ID, "kind", kind, "error", err)

		return false
	}

	return true
}
