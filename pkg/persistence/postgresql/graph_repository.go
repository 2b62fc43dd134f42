package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const graphColumns = `
	id
  , name
  , description
  , status
  , version
  , nodes
  , entry_node_id
  , owner
  , total_enrolled
  , total_completed
  , created_at
  , updated_at
  , published_at
`

// GraphRepository handles workflow graph database operations.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	query := `SELECT ` + graphColumns + ` FROM workflow_graphs WHERE id = $1`

	graph, err := scanGraph(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrGraphNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow graph: %w", err)
	}

	return graph, nil
}

func (r *GraphRepository) List(ctx context.Context) ([]*models.WorkflowGraph, error) {
	query := `SELECT ` + graphColumns + ` FROM workflow_graphs ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow graphs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	graphs := make([]*models.WorkflowGraph, 0)

	for rows.Next() {
		graph, err := scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow graph: %w", err)
		}

		graphs = append(graphs, graph)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow graphs: %w", err)
	}

	return graphs, nil
}

func (r *GraphRepository) Save(ctx context.Context, graph *models.WorkflowGraph) error {
	now := time.Now().UTC()

	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	if graph.ID == "" {
		graph.ID = uuid.NewString()
	}

	nodesJSON, err := json.Marshal(graph.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	query := `
		INSERT INTO workflow_graphs (id, name, description, status, version, nodes,
			entry_node_id, owner, total_enrolled, total_completed, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			nodes = EXCLUDED.nodes,
			entry_node_id = EXCLUDED.entry_node_id,
			owner = EXCLUDED.owner,
			total_enrolled = EXCLUDED.total_enrolled,
			total_completed = EXCLUDED.total_completed,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		graph.ID,
		graph.Name,
		graph.Description,
		graph.Status,
		graph.Version,
		nodesJSON,
		graph.EntryNodeID,
		graph.Owner,
		graph.TotalEnrolled,
		graph.TotalCompleted,
		graph.CreatedAt,
		graph.UpdatedAt,
		graph.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow graph: %w", err)
	}

	return nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_graphs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow graph: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrGraphNotFound
	}

	return nil
}

func scanGraph(scanner interface{ Scan(dest ...any) error }) (*models.WorkflowGraph, error) {
	var (
		graph     models.WorkflowGraph
		nodesJSON []byte
	)

	err := scanner.Scan(
		&graph.ID,
		&graph.Name,
		&graph.Description,
		&graph.Status,
		&graph.Version,
		&nodesJSON,
		&graph.EntryNodeID,
		&graph.Owner,
		&graph.TotalEnrolled,
		&graph.TotalCompleted,
		&graph.CreatedAt,
		&graph.UpdatedAt,
		&graph.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	if nodesJSON != nil {
		if err := json.Unmarshal(nodesJSON, &graph.Nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	return &graph, nil
}
