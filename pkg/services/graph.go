package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/registry"
)

// Graph manages workflow graph definitions: CRUD plus the publish/archive
// lifecycle. Validation happens at save time so dangling references and
// malformed action data never reach execution.
type Graph struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewGraph creates a new graph service.
func NewGraph(p persistence.Persistence, r *registry.Registry) *Graph {
	return &Graph{
		persistence: p,
		registry:    r,
	}
}

// HealthCheck checks the health of the persistence layer.
func (g *Graph) HealthCheck(ctx context.Context) (string, bool) {
	if g.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := g.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every graph definition.
func (g *Graph) List(ctx context.Context) ([]*models.WorkflowGraph, error) {
	return g.persistence.Graphs().List(ctx)
}

// FetchByID retrieves a graph by its ID.
func (g *Graph) FetchByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	return g.persistence.Graphs().GetByID(ctx, id)
}

// Create adds a new graph as a draft.
func (g *Graph) Create(ctx context.Context, graph *models.WorkflowGraph) (*models.WorkflowGraph, error) {
	if graph == nil {
		return nil, ErrGraphNil
	}

	now := time.Now().UTC()
	graph.ID = uuid.New().String()
	graph.CreatedAt = now
	graph.UpdatedAt = now
	graph.Version = 1
	graph.TotalEnrolled = 0
	graph.TotalCompleted = 0

	if graph.Status == "" {
		graph.Status = models.GraphStatusDraft
	}

	if err := g.validate(graph); err != nil {
		return nil, err
	}

	if err := g.persistence.Graphs().Save(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	return graph, nil
}

// Update modifies an existing draft graph. Published graphs are immutable;
// in-flight enrollments keep stepping the definition they started with.
func (g *Graph) Update(ctx context.Context, graphID string, graph *models.WorkflowGraph) (*models.WorkflowGraph, error) {
	if graph == nil {
		return nil, ErrGraphNil
	}

	existing, err := g.persistence.Graphs().GetByID(ctx, graphID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.GraphStatusPublished {
		return nil, ErrCannotModifyPublished
	}

	graph.ID = graphID
	graph.Status = existing.Status
	graph.Version = existing.Version
	graph.CreatedAt = existing.CreatedAt
	graph.UpdatedAt = time.Now().UTC()
	graph.TotalEnrolled = existing.TotalEnrolled
	graph.TotalCompleted = existing.TotalCompleted

	if err := g.validate(graph); err != nil {
		return nil, err
	}

	if err := g.persistence.Graphs().Save(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to update graph: %w", err)
	}

	return graph, nil
}

// Delete removes a graph by its ID.
func (g *Graph) Delete(ctx context.Context, graphID string) error {
	return g.persistence.Graphs().Delete(ctx, graphID)
}

// Publish moves a draft graph to published, making it enrollable and
// freezing its definition.
func (g *Graph) Publish(ctx context.Context, graphID string) (*models.WorkflowGraph, error) {
	graph, err := g.persistence.Graphs().GetByID(ctx, graphID)
	if err != nil {
		return nil, err
	}

	switch graph.Status {
	case models.GraphStatusPublished:
		return nil, ErrAlreadyPublished
	case models.GraphStatusArchived:
		return nil, ErrCannotPublishArchived
	}

	if err := g.validate(graph); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	now := time.Now().UTC()
	graph.Status = models.GraphStatusPublished
	graph.PublishedAt = &now
	graph.UpdatedAt = now

	if err := g.persistence.Graphs().Save(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to publish graph: %w", err)
	}

	return graph, nil
}

// Archive retires a graph. Archived graphs accept no new enrollments;
// existing ones keep running.
func (g *Graph) Archive(ctx context.Context, graphID string) (*models.WorkflowGraph, error) {
	graph, err := g.persistence.Graphs().GetByID(ctx, graphID)
	if err != nil {
		return nil, err
	}

	graph.Status = models.GraphStatusArchived
	graph.UpdatedAt = time.Now().UTC()

	if err := g.persistence.Graphs().Save(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to archive graph: %w", err)
	}

	return graph, nil
}

// validate runs structural validation plus action-data schema validation for
// every action node.
func (g *Graph) validate(graph *models.WorkflowGraph) error {
	if graph.Name == "" {
		return ErrGraphNameRequired
	}

	if err := graph.Validate(); err != nil {
		return err
	}

	for _, node := range graph.Nodes {
		if node.Type != models.NodeTypeAction {
			continue
		}

		if err := g.registry.ValidateActionData(node.ActionType, node.ActionData); err != nil {
			return NewValidationError(
				"validateGraph",
				"INVALID_ACTION_DATA",
				fmt.Sprintf("node %q: %v", node.ID, err),
				ErrInvalidRequest,
			)
		}
	}

	return nil
}
