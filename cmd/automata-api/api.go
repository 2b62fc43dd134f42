// Package main provides the automata API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/harvestcrm/automata/pkg/dispatcher"
	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/registry"
	"github.com/harvestcrm/automata/pkg/scheduler"
	"github.com/harvestcrm/automata/pkg/services"
	"github.com/harvestcrm/automata/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.NewEngine(a.persistence, a.registry, a.eventBus, a.logger)
	sched := scheduler.NewScheduler(a.persistence, a.eventBus, a.logger)
	disp := dispatcher.NewDispatcher(a.persistence, sched, eng, a.logger)

	handlers := web.NewAPIHandlers(
		services.NewGraph(a.persistence, a.registry),
		services.NewRule(a.persistence),
		services.NewConditionTester(a.persistence),
		eng,
		disp,
		a.persistence,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Automata API")
	})

	g := app.Group("/graphs")
	g.Get("/", handlers.GetGraphs)
	g.Post("/", handlers.CreateGraph)
	g.Get("/:id", handlers.GetGraph)
	g.Patch("/:id", handlers.UpdateGraph)
	g.Delete("/:id", handlers.DeleteGraph)
	g.Post("/:id/publish", handlers.PublishGraph)
	g.Post("/:id/archive", handlers.ArchiveGraph)
	g.Post("/:id/enrollments", handlers.EnrollContact)
	g.Get("/:id/enrollments", handlers.GetEnrollments)

	e := app.Group("/enrollments")
	e.Get("/:id", handlers.GetEnrollment)
	e.Post("/:id/step", handlers.StepEnrollment)
	e.Delete("/:id", handlers.UnenrollContact)

	r := app.Group("/rules")
	r.Get("/", handlers.GetRules)
	r.Post("/", handlers.CreateRule)
	r.Get("/:id", handlers.GetRule)
	r.Patch("/:id", handlers.UpdateRule)
	r.Delete("/:id", handlers.DeleteRule)

	c := app.Group("/contacts")
	c.Get("/:id/tasks", handlers.GetContactTasks)
	c.Get("/:id/batches", handlers.GetContactBatches)

	app.Post("/tasks/:id/complete", handlers.CompleteTask)
	app.Get("/stats", handlers.GetStats)
	app.Post("/conditions/test", handlers.TestCondition)
	app.Post("/triggers/activity", handlers.TriggerActivity)
	app.Post("/triggers/status-change", handlers.TriggerStatusChange)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
