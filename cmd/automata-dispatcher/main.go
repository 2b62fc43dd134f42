// Package main provides the automata trigger dispatcher: it consumes contact
// events from the bus and the Redis intake queue and turns them into tasks
// and enrollments.
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
	"github.com/harvestcrm/automata/pkg/dispatcher"
	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/log"
	"github.com/harvestcrm/automata/pkg/otelhelper"
	"github.com/harvestcrm/automata/pkg/receivers/queue"
	"github.com/harvestcrm/automata/pkg/scheduler"
)

func main() {
	logger := log.WithModule("dispatcher")

	command := &cli.Command{
		Name:                  "automata-dispatcher",
		Usage:                 "Start the automata trigger dispatcher",
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
				Name:    "redis-url",
				Usage:   "Redis URL for the CRM intake queue (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "intake-queue",
				Usage:   "Redis list the CRM pushes contact events onto",
				Value:   queue.DefaultQueue,
				Sources: cli.EnvVars("INTAKE_QUEUE"),
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

			tracerProvider, err := otelhelper.InitTracer(ctx, "automata-dispatcher")
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

			eng := engine.NewEngine(persistence, registry, eventBus, logger)
			sched := scheduler.NewScheduler(persistence, eventBus, logger)
			disp := dispatcher.NewDispatcher(persistence, sched, eng, logger)

			err = disp.Register(eventBus)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = eventBus.Subscribe(runCtx)
			if err != nil {
				return err
			}

			if redisURL := command.String("redis-url"); redisURL != "" {
				receiver, err := queue.NewReceiver(redisURL, command.String("intake-queue"), eventBus, logger)
				if err != nil {
					return err
				}

				err = receiver.Start(runCtx)
				if err != nil {
					return err
				}

				defer func() {
					if err := receiver.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
					}
				}()
			}

			logger.InfoContext(ctx, "Dispatcher started")

			<-runCtx.Done()
			stop()

			logger.InfoContext(ctx, "Shutting down dispatcher")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
