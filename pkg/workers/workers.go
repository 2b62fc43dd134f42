// Package workers runs the periodic sweep pool: wait resumptions, due
// reminders and the overdue catch-up sweep. Each sweep is an independent
// cron job; a slow pass skips the next tick instead of piling up.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/otelhelper"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/scheduler"
)

// Sweep names used in logs and sweep.completed events.
const (
	SweepWaitResume = "wait_resume"
	SweepReminders  = "reminders"
	SweepOverdue    = "overdue"
)

const defaultConcurrency = 8

// Config sets the cron schedule of each sweep. Zero values fall back to the
// defaults.
type Config struct {
	ResumeSchedule   string
	ReminderSchedule string
	OverdueSchedule  string
	Concurrency      int
}

func (c Config) withDefaults() Config {
	if c.ResumeSchedule == "" {
		c.ResumeSchedule = "@every 1m"
	}

	if c.ReminderSchedule == "" {
		c.ReminderSchedule = "@every 1m"
	}

	if c.OverdueSchedule == "" {
		c.OverdueSchedule = "@every 1h"
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}

	return c
}

type Pool struct {
	workerID    string
	config      Config
	persistence persistence.Persistence
	engine      *engine.Engine
	scheduler   *scheduler.Scheduler
	notifier    notifier.Notifier
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	cron        *cron.Cron
	tracer      trace.Tracer

	// Injectable for tests.
	now func() time.Time
}

func NewPool(config Config, p persistence.Persistence, e *engine.Engine, s *scheduler.Scheduler, n notifier.Notifier, publisher eventbus.EventPublisher, logger *slog.Logger) *Pool {
	workerID := "worker-" + uuid.NewString()[:8]

	return &Pool{
		workerID:    workerID,
		config:      config.withDefaults(),
		persistence: p,
		engine:      e,
		scheduler:   s,
		notifier:    n,
		publisher:   publisher,
		logger:      logger.With("module", "workers", "worker_id", workerID),
		tracer:      otel.Tracer("automata/workers"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the sweep jobs and starts the cron scheduler.
func (p *Pool) Start(ctx context.Context) error {
	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	jobs := []struct {
		schedule string
		sweep    func(context.Context) (int, int)
		name     string
	}{
		{p.config.ResumeSchedule, p.ResumeWaits, SweepWaitResume},
		{p.config.ReminderSchedule, p.FireReminders, SweepReminders},
		{p.config.OverdueSchedule, p.CatchUpOverdue, SweepOverdue},
	}

	for _, job := range jobs {
		job := job

		if _, err := p.cron.AddFunc(job.schedule, func() {
			p.runSweep(ctx, job.name, job.sweep)
		}); err != nil {
			return fmt.Errorf("failed to register %s sweep: %w", job.name, err)
		}
	}

	p.cron.Start()
	p.logger.InfoContext(ctx, "Sweep pool started",
		"resume_schedule", p.config.ResumeSchedule,
		"reminder_schedule", p.config.ReminderSchedule,
		"overdue_schedule", p.config.OverdueSchedule)

	return nil
}

// Stop stops the cron scheduler and waits for running sweeps to finish.
func (p *Pool) Stop(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}

	stopCtx := p.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	p.logger.InfoContext(ctx, "Sweep pool stopped")

	return nil
}

// ResumeWaits steps every wait-suspended enrollment whose resume time has
// passed. Enrollments are stepped concurrently; the engine serializes steps
// per enrollment.
func (p *Pool) ResumeWaits(ctx context.Context) (int, int) {
	due, err := p.persistence.Enrollments().ListDueForResume(ctx, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list due resumptions", "error", err)

		return 0, 1
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	sem := make(chan struct{}, p.config.Concurrency)

	for _, enrollment := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := p.engine.Step(ctx, id); err != nil {
				p.logger.ErrorContext(ctx, "Failed to resume enrollment", "enrollment_id", id, "error", err)

				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(enrollment.ID)
	}

	wg.Wait()

	return len(due) - failed, failed
}

// FireReminders sends the reminder for every due task and records the send
// so it fires at most once.
func (p *Pool) FireReminders(ctx context.Context) (int, int) {
	now := p.now()

	due, err := p.persistence.Tasks().ListDueReminders(ctx, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list due reminders", "error", err)

		return 0, 1
	}

	sent, failed := 0, 0

	for _, task := range due {
		msg := notifier.Message{
			ContactID: task.ContactID,
			Subject:   "Reminder: " + task.Title,
			Body:      fmt.Sprintf("%s is due at %s.", task.Title, task.DueAt.Format(time.RFC1123)),
		}

		if err := p.notifier.Send(ctx, msg); err != nil {
			p.logger.ErrorContext(ctx, "Failed to send reminder", "task_id", task.ID, "error", err)

			failed++

			continue
		}

		sentAt := now
		task.ReminderSentAt = &sentAt
		task.UpdatedAt = now

		if err := p.persistence.Tasks().Update(ctx, task); err != nil {
			p.logger.ErrorContext(ctx, "Failed to record reminder send", "task_id", task.ID, "error", err)

			failed++

			continue
		}

		sent++
	}

	return sent, failed
}

// CatchUpOverdue runs the scheduler's overdue contact sweep.
func (p *Pool) CatchUpOverdue(ctx context.Context) (int, int) {
	created, err := p.scheduler.SweepOverdue(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Overdue sweep failed", "error", err)

		return created, 1
	}

	return created, 0
}

func (p *Pool) runSweep(ctx context.Context, name string, sweep func(context.Context) (int, int)) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "sweep."+name,
		attribute.String(otelhelper.WorkerIDKey, p.workerID),
		attribute.String(otelhelper.SweepKey, name),
	)
	defer span.End()

	started := p.now()
	processed, failed := sweep(ctx)
	elapsed := p.now().Sub(started)

	span.SetAttributes(
		attribute.Int("sweep.processed", processed),
		attribute.Int("sweep.failed", failed),
	)

	if failed > 0 {
		otelhelper.SetError(span, fmt.Errorf("%s sweep: %d of %d items failed", name, failed, processed+failed))
	}

	if processed > 0 || failed > 0 {
		p.logger.InfoContext(ctx, "Sweep finished", "sweep", name, "processed", processed, "failed", failed, "duration", elapsed)
	}

	if p.publisher == nil {
		return
	}

	event := events.SweepCompleted{
		BaseEvent:  events.NewBaseEvent(events.SweepCompletedEvent, ""),
		Sweep:      name,
		Processed:  processed,
		Failed:     failed,
		DurationMs: elapsed.Milliseconds(),
		Duration:   elapsed,
	}
	event.WorkerID = p.workerID

	if err := p.publisher.Publish(ctx, p.workerID, event); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish sweep event", "sweep", name, "error", err)
	}
}
