package file

import (
	"context"
	"encoding/json"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const graphKind = "graphs"

// GraphRepository stores workflow graph definitions as JSON documents.
type GraphRepository struct {
	store *store
}

func (r *GraphRepository) GetByID(_ context.Context, id string) (*models.WorkflowGraph, error) {
	var graph models.WorkflowGraph
	if err := r.store.read(graphKind, id, &graph, persistence.ErrGraphNotFound); err != nil {
		return nil, err
	}

	return &graph, nil
}

func (r *GraphRepository) List(_ context.Context) ([]*models.WorkflowGraph, error) {
	var graphs []*models.WorkflowGraph

	err := r.store.each(graphKind, func(data []byte) error {
		var graph models.WorkflowGraph
		if err := json.Unmarshal(data, &graph); err != nil {
			return err
		}

		graphs = append(graphs, &graph)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return graphs, nil
}

func (r *GraphRepository) Save(_ context.Context, graph *models.WorkflowGraph) error {
	return r.store.write(graphKind, graph.ID, graph)
}

func (r *GraphRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(graphKind, id, persistence.ErrGraphNotFound)
}
