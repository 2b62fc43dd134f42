// Package main provides the automata sweep worker: wait resumptions, task
// reminders and the overdue catch-up sweep.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/harvestcrm/automata/pkg/cmd"
	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/log"
	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/otelhelper"
	"github.com/harvestcrm/automata/pkg/scheduler"
	"github.com/harvestcrm/automata/pkg/workers"
)

func main() {
	logger := log.WithModule("worker")

	command := &cli.Command{
		Name:                  "automata-worker",
		Usage:                 "Start the automata sweep worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "resume-schedule",
				Usage:   "Cron schedule for the wait resume sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("RESUME_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "reminder-schedule",
				Usage:   "Cron schedule for the reminder sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "overdue-schedule",
				Usage:   "Cron schedule for the overdue catch-up sweep",
				Value:   "@every 1h",
				Sources: cli.EnvVars("OVERDUE_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Max enrollments stepped concurrently per sweep",
				Value:   8,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "automata-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger)
			mail := notifier.NewSlogNotifier(logger)

			eng := engine.NewEngine(persistence, registry, eventBus, logger)
			sched := scheduler.NewScheduler(persistence, eventBus, logger)

			pool := workers.NewPool(
				workers.Config{
					ResumeSchedule:   command.String("resume-schedule"),
					ReminderSchedule: command.String("reminder-schedule"),
					OverdueSchedule:  command.String("overdue-schedule"),
					Concurrency:      command.Int("concurrency"),
				},
				persistence,
				eng,
				sched,
				mail,
				eventBus,
				logger,
			)

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = pool.Start(runCtx)
			if err != nil {
				return err
			}

			<-runCtx.Done()
			stop()

			logger.InfoContext(ctx, "Shutting down worker")

			return pool.Stop(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
