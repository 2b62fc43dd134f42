// Package engine advances workflow enrollments through their graphs, one
// node per step. Steps for the same enrollment are serialized through a
// striped lock; different enrollments step concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/conditions"
	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/protocol"
	"github.com/harvestcrm/automata/pkg/registry"
)

const lockStripes = 64

// ErrGraphNotEnrollable is returned when enrolling into a graph that is not
// published.
var ErrGraphNotEnrollable = errors.New("graph is not enrollable")

// Step results recorded in the execution log.
const (
	resultOK       = "ok"
	resultTrue     = "true"
	resultFalse    = "false"
	resultWaiting  = "waiting"
	resultResumed  = "resumed"
	resultVariantA = "variant_a"
	resultVariantB = "variant_b"
)

type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	logger      *slog.Logger

	// Injectable for tests.
	now     func() time.Time
	randInt func(n int) int

	locks [lockStripes]sync.Mutex
}

// NewEngine creates a workflow engine. The publisher may be nil; lifecycle
// events are then skipped.
func NewEngine(p persistence.Persistence, r *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		registry:    r,
		publisher:   publisher,
		logger:      logger.With("module", "engine"),
		now:         func() time.Time { return time.Now().UTC() },
		randInt:     rand.Intn,
	}
}

// Enroll starts a contact on a published graph. Enrollment is idempotent per
// (graph, contact): an existing enrollment is returned unchanged, whatever
// its status.
func (e *Engine) Enroll(ctx context.Context, graphID, contactID string) (*models.Enrollment, error) {
	graph, err := e.persistence.Graphs().GetByID(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph %s: %w", graphID, err)
	}

	if !graph.IsEnrollable() {
		return nil, fmt.Errorf("%w: graph %s has status %s", ErrGraphNotEnrollable, graphID, graph.Status)
	}

	existing, err := e.persistence.Enrollments().FindByGraphAndContact(ctx, graphID, contactID)
	if err == nil {
		return existing, nil
	}

	if !persistence.IsEnrollmentNotFound(err) {
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}

	now := e.now()
	enrollment := &models.Enrollment{
		ID:            uuid.NewString(),
		GraphID:       graphID,
		GraphVersion:  graph.Version,
		ContactID:     contactID,
		CurrentNodeID: graph.EntryNodeID,
		Status:        models.EnrollmentStatusActive,
		EnrolledAt:    now,
		UpdatedAt:     now,
	}

	if err := e.persistence.Enrollments().Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	graph.TotalEnrolled++

	if err := e.persistence.Graphs().Save(ctx, graph); err != nil {
		e.logger.WarnContext(ctx, "Failed to update graph enrollment counter", "graph_id", graphID, "error", err)
	}

	e.logger.InfoContext(ctx, "Contact enrolled", "graph_id", graphID, "contact_id", contactID, "enrollment_id", enrollment.ID)

	return enrollment, nil
}

// Unenroll removes an enrollment entirely.
func (e *Engine) Unenroll(ctx context.Context, enrollmentID string) error {
	return e.persistence.Enrollments().Delete(ctx, enrollmentID)
}

// Step executes exactly one node of the enrollment. Terminal enrollments and
// paused enrollments whose resume time has not arrived are returned
// unchanged.
func (e *Engine) Step(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	lock := e.lockFor(enrollmentID)
	lock.Lock()
	defer lock.Unlock()

	enrollment, err := e.persistence.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch enrollment %s: %w", enrollmentID, err)
	}

	if enrollment.IsTerminal() {
		return enrollment, nil
	}

	now := e.now()

	if enrollment.Status == models.EnrollmentStatusPaused {
		if !enrollment.DueForResume(now) {
			return enrollment, nil
		}

		return e.resume(ctx, enrollment, now)
	}

	graph, err := e.persistence.Graphs().GetByID(ctx, enrollment.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph %s: %w", enrollment.GraphID, err)
	}

	node, ok := graph.Node(enrollment.CurrentNodeID)
	if !ok {
		return e.fail(ctx, enrollment, graph, enrollment.CurrentNodeID,
			fmt.Sprintf("unknown node %q", enrollment.CurrentNodeID), now)
	}

	contact, err := e.persistence.Contacts().GetByID(ctx, enrollment.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact %s: %w", enrollment.ContactID, err)
	}

	result, nextNodeID := e.executeNode(ctx, enrollment, node, contact)

	if node.Type == models.NodeTypeWait {
		return e.suspend(ctx, enrollment, node, now)
	}

	if _, ok := graph.Node(nextNodeID); nextNodeID != "" && !ok {
		return e.fail(ctx, enrollment, graph, node.ID,
			fmt.Sprintf("node %q references unknown node %q", node.ID, nextNodeID), now)
	}

	e.appendLog(enrollment, node.ID, result, nextNodeID, now)
	enrollment.CurrentNodeID = nextNodeID

	if nextNodeID == "" {
		e.complete(ctx, enrollment, graph, now)
	}

	if err := e.persistence.Enrollments().Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	e.publishStepped(ctx, enrollment, node.ID, result, nextNodeID)

	return enrollment, nil
}

// executeNode runs one node and returns the log result plus the next node
// id. Wait nodes are handled by the caller.
func (e *Engine) executeNode(ctx context.Context, enrollment *models.Enrollment, node *models.Node, contact *models.Contact) (string, string) {
	switch node.Type {
	case models.NodeTypeAction:
		return e.executeAction(ctx, enrollment, node, contact), node.Next

	case models.NodeTypeDecision:
		if conditions.EvaluateGroup(contact, node.Group.Conditions, node.Group.Logic) {
			return resultTrue, node.TrueNext
		}

		return resultFalse, node.FalseNext

	case models.NodeTypeABTest:
		variant := e.assignVariant(enrollment, node)
		if variant == models.VariantA {
			return resultVariantA, node.VariantANext
		}

		return resultVariantB, node.VariantBNext

	default:
		return resultWaiting, node.Next
	}
}

// executeAction dispatches to the handler. Handlers are best-effort: a
// failure is logged and the enrollment still advances.
func (e *Engine) executeAction(ctx context.Context, enrollment *models.Enrollment, node *models.Node, contact *models.Contact) string {
	action, err := e.registry.CreateAction(node.ActionType, node.ActionData)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to create action", "node_id", node.ID, "action_type", node.ActionType, "error", err)

		return "error: " + err.Error()
	}

	actionCtx := protocol.ActionContext{
		GraphID:      enrollment.GraphID,
		NodeID:       node.ID,
		EnrollmentID: enrollment.ID,
		Contact:      contact,
	}

	if _, err := action.Execute(ctx, actionCtx, e.logger); err != nil {
		e.logger.ErrorContext(ctx, "Action handler failed", "node_id", node.ID, "action_type", node.ActionType, "error", err)

		return "error: " + err.Error()
	}

	return resultOK
}

// assignVariant draws the A/B variant the first time the node is reached and
// persists it on the enrollment. Re-entry never re-rolls.
func (e *Engine) assignVariant(enrollment *models.Enrollment, node *models.Node) models.ABVariant {
	if variant, ok := enrollment.ABAssignments[node.ID]; ok {
		return variant
	}

	draw := e.randInt(100) + 1

	variant := models.VariantB
	if draw <= node.SplitPercentage {
		variant = models.VariantA
	}

	if enrollment.ABAssignments == nil {
		enrollment.ABAssignments = make(map[string]models.ABVariant)
	}

	enrollment.ABAssignments[node.ID] = variant

	return variant
}

// suspend parks the enrollment on the wait node until the sweep re-activates
// it.
func (e *Engine) suspend(ctx context.Context, enrollment *models.Enrollment, node *models.Node, now time.Time) (*models.Enrollment, error) {
	resumeAt := now.Add(node.WaitDuration())
	enrollment.Status = models.EnrollmentStatusPaused
	enrollment.ResumeAt = &resumeAt

	e.appendLog(enrollment, node.ID, resultWaiting, node.Next, now)

	if err := e.persistence.Enrollments().Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	e.publishStepped(ctx, enrollment, node.ID, resultWaiting, node.Next)

	return enrollment, nil
}

// resume re-activates a wait-suspended enrollment and advances past the wait
// node.
func (e *Engine) resume(ctx context.Context, enrollment *models.Enrollment, now time.Time) (*models.Enrollment, error) {
	graph, err := e.persistence.Graphs().GetByID(ctx, enrollment.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph %s: %w", enrollment.GraphID, err)
	}

	node, ok := graph.Node(enrollment.CurrentNodeID)
	if !ok {
		return e.fail(ctx, enrollment, graph, enrollment.CurrentNodeID,
			fmt.Sprintf("unknown node %q", enrollment.CurrentNodeID), now)
	}

	enrollment.Status = models.EnrollmentStatusActive
	enrollment.ResumeAt = nil

	nextNodeID := node.Next
	if _, ok := graph.Node(nextNodeID); nextNodeID != "" && !ok {
		return e.fail(ctx, enrollment, graph, node.ID,
			fmt.Sprintf("node %q references unknown node %q", node.ID, nextNodeID), now)
	}

	e.appendLog(enrollment, node.ID, resultResumed, nextNodeID, now)
	enrollment.CurrentNodeID = nextNodeID

	if nextNodeID == "" {
		e.complete(ctx, enrollment, graph, now)
	}

	if err := e.persistence.Enrollments().Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	e.publishStepped(ctx, enrollment, node.ID, resultResumed, nextNodeID)

	return enrollment, nil
}

func (e *Engine) complete(ctx context.Context, enrollment *models.Enrollment, graph *models.WorkflowGraph, now time.Time) {
	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.CompletedAt = &now

	graph.TotalCompleted++

	if err := e.persistence.Graphs().Save(ctx, graph); err != nil {
		e.logger.WarnContext(ctx, "Failed to update graph completion counter", "graph_id", graph.ID, "error", err)
	}
}

// fail marks the enrollment failed with the offending node recorded. Failed
// enrollments are never retried automatically.
func (e *Engine) fail(ctx context.Context, enrollment *models.Enrollment, graph *models.WorkflowGraph, nodeID, reason string, now time.Time) (*models.Enrollment, error) {
	e.logger.ErrorContext(ctx, "Enrollment failed", "enrollment_id", enrollment.ID, "node_id", nodeID, "reason", reason)

	enrollment.Status = models.EnrollmentStatusFailed
	enrollment.ResumeAt = nil
	e.appendLog(enrollment, nodeID, "error: "+reason, "", now)

	if err := e.persistence.Enrollments().Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	if e.publisher != nil {
		event := events.EnrollmentFailed{
			BaseEvent:    events.NewBaseEvent(events.EnrollmentFailedEvent, enrollment.ContactID),
			EnrollmentID: enrollment.ID,
			GraphID:      graph.ID,
			NodeID:       nodeID,
			Error:        reason,
		}

		if err := e.publisher.Publish(ctx, enrollment.ContactID, event); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish enrollment failure", "error", err)
		}
	}

	return enrollment, nil
}

func (e *Engine) appendLog(enrollment *models.Enrollment, nodeID, result, nextNodeID string, now time.Time) {
	enrollment.UpdatedAt = now
	enrollment.ExecutionLog = append(enrollment.ExecutionLog, models.LogEntry{
		NodeID:     nodeID,
		EnteredAt:  now,
		Result:     result,
		NextNodeID: nextNodeID,
	})
}

func (e *Engine) publishStepped(ctx context.Context, enrollment *models.Enrollment, nodeID, result, nextNodeID string) {
	if e.publisher == nil {
		return
	}

	event := events.EnrollmentStepped{
		BaseEvent:    events.NewBaseEvent(events.EnrollmentSteppedEvent, enrollment.ContactID),
		EnrollmentID: enrollment.ID,
		GraphID:      enrollment.GraphID,
		NodeID:       nodeID,
		Result:       result,
		NextNodeID:   nextNodeID,
		Status:       enrollment.Status,
	}

	if err := e.publisher.Publish(ctx, enrollment.ContactID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish enrollment step", "error", err)
	}
}

func (e *Engine) lockFor(enrollmentID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(enrollmentID))

	return &e.locks[h.Sum32()%lockStripes]
}
