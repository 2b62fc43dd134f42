package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/harvestcrm/automata/pkg/dispatcher"
	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/services"
)

type APIHandlers struct {
	graphService    *services.Graph
	ruleService     *services.Rule
	conditionTester *services.ConditionTester
	engine          *engine.Engine
	dispatcher      *dispatcher.Dispatcher
	persistence     persistence.Persistence
	validator       *validator.Validate
}

func NewAPIHandlers(
	graphService *services.Graph,
	ruleService *services.Rule,
	conditionTester *services.ConditionTester,
	eng *engine.Engine,
	disp *dispatcher.Dispatcher,
	p persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		graphService:    graphService,
		ruleService:     ruleService,
		conditionTester: conditionTester,
		engine:          eng,
		dispatcher:      disp,
		persistence:     p,
		validator:       validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.graphService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Graph handlers

func (h *APIHandlers) GetGraphs(c fiber.Ctx) error {
	graphs, err := h.graphService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"graphs": graphs, "total_count": len(graphs)})
}

func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	graph, err := h.graphService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) CreateGraph(c fiber.Ctx) error {
	var req CreateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	graph := &models.WorkflowGraph{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		EntryNodeID: req.EntryNodeID,
		Owner:       req.Owner,
	}

	created, err := h.graphService.Create(c.Context(), graph)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateGraph(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.graphService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.EntryNodeID != nil {
		existing.EntryNodeID = *req.EntryNodeID
	}

	updated, err := h.graphService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteGraph(c fiber.Ctx) error {
	if err := h.graphService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishGraph(c fiber.Ctx) error {
	published, err := h.graphService.Publish(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) ArchiveGraph(c fiber.Ctx) error {
	archived, err := h.graphService.Archive(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(archived)
}

// Enrollment handlers

func (h *APIHandlers) EnrollContact(c fiber.Ctx) error {
	var req EnrollRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enrollment, err := h.engine.Enroll(c.Context(), c.Params("id"), req.ContactID)
	if err != nil {
		if persistence.IsGraphNotFound(err) {
			return notFound(c, "graph not found")
		}

		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func (h *APIHandlers) GetEnrollments(c fiber.Ctx) error {
	enrollments, err := h.persistence.Enrollments().ListByGraph(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"enrollments": enrollments, "total_count": len(enrollments)})
}

func (h *APIHandlers) GetEnrollment(c fiber.Ctx) error {
	enrollment, err := h.persistence.Enrollments().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) StepEnrollment(c fiber.Ctx) error {
	enrollment, err := h.engine.Step(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) UnenrollContact(c fiber.Ctx) error {
	if err := h.engine.Unenroll(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Rule handlers

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	filter := persistence.RuleFilter{
		TriggerType: models.TriggerType(c.Query("trigger_type")),
		ActiveOnly:  c.Query("active") == "true",
	}

	rules, err := h.ruleService.List(c.Context(), filter)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"rules": rules, "total_count": len(rules)})
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.ruleService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule := &models.AutomationRule{
		Name:                    req.Name,
		Description:             req.Description,
		TriggerType:             req.TriggerType,
		TriggerConfig:           req.TriggerConfig,
		TaskTitleTemplate:       req.TaskTitleTemplate,
		TaskDescriptionTemplate: req.TaskDescriptionTemplate,
		TaskPriority:            req.TaskPriority,
		DelayHours:              req.DelayHours,
		ReminderOffsetHours:     req.ReminderOffsetHours,
		IsActive:                req.IsActive,
	}

	created, err := h.ruleService.Create(c.Context(), rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.ruleService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.TriggerType != nil {
		existing.TriggerType = *req.TriggerType
	}

	if req.TriggerConfig != nil {
		existing.TriggerConfig = req.TriggerConfig
	}

	if req.TaskTitleTemplate != nil {
		existing.TaskTitleTemplate = *req.TaskTitleTemplate
	}

	if req.TaskDescriptionTemplate != nil {
		existing.TaskDescriptionTemplate = *req.TaskDescriptionTemplate
	}

	if req.TaskPriority != nil {
		existing.TaskPriority = *req.TaskPriority
	}

	if req.DelayHours != nil {
		existing.DelayHours = *req.DelayHours
	}

	if req.ReminderOffsetHours != nil {
		existing.ReminderOffsetHours = *req.ReminderOffsetHours
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	updated, err := h.ruleService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.ruleService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Task handlers

func (h *APIHandlers) GetContactTasks(c fiber.Ctx) error {
	tasks, err := h.persistence.Tasks().ListByContact(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks, "total_count": len(tasks)})
}

func (h *APIHandlers) GetContactBatches(c fiber.Ctx) error {
	batches, err := h.persistence.Batches().ListByContact(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"batches": batches, "total_count": len(batches)})
}

// CompleteTask marks the task completed and bumps its batch counter.
func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	task, err := h.persistence.Tasks().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if task.Status == models.TaskStatusCompleted {
		return c.JSON(task)
	}

	task.Status = models.TaskStatusCompleted
	task.UpdatedAt = time.Now().UTC()

	if err := h.persistence.Tasks().Update(c.Context(), task); err != nil {
		return internalError(c, err)
	}

	if task.BatchID != "" {
		if err := h.persistence.Batches().IncrementCompleted(c.Context(), task.BatchID); err != nil {
			return internalError(c, err)
		}
	}

	return c.JSON(task)
}

// GetStats aggregates automation counters across graphs and rules.
func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	graphs, err := h.persistence.Graphs().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	rules, err := h.persistence.Rules().List(c.Context(), persistence.RuleFilter{})
	if err != nil {
		return internalError(c, err)
	}

	var published, enrolled, completed int

	for _, graph := range graphs {
		if graph.Status == models.GraphStatusPublished {
			published++
		}

		enrolled += graph.TotalEnrolled
		completed += graph.TotalCompleted
	}

	var active, triggered, tasksCreated int

	for _, rule := range rules {
		if rule.IsActive {
			active++
		}

		triggered += rule.TimesTriggered
		tasksCreated += rule.TasksCreated
	}

	return c.JSON(fiber.Map{
		"graphs": fiber.Map{
			"total":           len(graphs),
			"published":       published,
			"total_enrolled":  enrolled,
			"total_completed": completed,
		},
		"rules": fiber.Map{
			"total":           len(rules),
			"active":          active,
			"times_triggered": triggered,
			"tasks_created":   tasksCreated,
		},
	})
}

// Condition debugging

func (h *APIHandlers) TestCondition(c fiber.Ctx) error {
	var req TestConditionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.conditionTester.Test(c.Context(), req.ContactID, req.Group)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// Trigger intake, called by the CRUD layer.

func (h *APIHandlers) TriggerActivity(c fiber.Ctx) error {
	var req ActivityTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.dispatcher.OnActivity(c.Context(), req.ContactID, req.ActivityType); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) TriggerStatusChange(c fiber.Ctx) error {
	var req StatusChangeTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.dispatcher.OnStatusChange(c.Context(), req.ContactID, req.OldStatus, req.NewStatus); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
