package models

import (
	"fmt"
	"time"
)

// GraphStatus represents the lifecycle state of a workflow graph.
type GraphStatus string

const (
	GraphStatusDraft     GraphStatus = "draft"     // Editable, not enrollable
	GraphStatusPublished GraphStatus = "published" // Immutable, enrollable
	GraphStatusArchived  GraphStatus = "archived"  // Historical, not enrollable
)

// WorkflowGraph is an immutable workflow definition: a node arena addressed
// by string id plus an entry point. Edges live in the node fields; there is
// no separate edge table. Once published the definition never changes —
// in-flight enrollments keep stepping the version they started with.
type WorkflowGraph struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Description string           `json:"description"`
	Status      GraphStatus      `json:"status"`
	Version     int              `json:"version"`
	Nodes       map[string]*Node `json:"nodes"`
	EntryNodeID string           `json:"entry_node_id"`
	Owner       string           `json:"owner"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`

	// Enrollment counters, maintained by the engine.
	TotalEnrolled  int `json:"total_enrolled"`
	TotalCompleted int `json:"total_completed"`
}

// Node looks up a node by id in the graph arena.
func (g *WorkflowGraph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]

	return n, ok
}

// Validate checks the whole definition: every node validates locally, the
// entry point resolves, and every node reference resolves or is empty.
// Dangling references are rejected here so they can never surface at
// execution time.
func (g *WorkflowGraph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("%w: graph has no nodes", ErrInvalidGraph)
	}

	if g.EntryNodeID == "" {
		return fmt.Errorf("%w: entry_node_id is required", ErrInvalidGraph)
	}

	if _, ok := g.Nodes[g.EntryNodeID]; !ok {
		return fmt.Errorf("%w: entry_node_id %q does not resolve", ErrInvalidGraph, g.EntryNodeID)
	}

	for id, node := range g.Nodes {
		if node.ID != id {
			return fmt.Errorf("%w: node keyed %q carries id %q", ErrInvalidGraph, id, node.ID)
		}

		if err := node.Validate(); err != nil {
			return err
		}

		for _, ref := range node.references() {
			if ref == "" {
				continue
			}

			if _, ok := g.Nodes[ref]; !ok {
				return fmt.Errorf("%w: node %q references missing node %q", ErrInvalidGraph, id, ref)
			}
		}
	}

	return nil
}

// IsEnrollable reports whether new enrollments may start on this graph.
func (g *WorkflowGraph) IsEnrollable() bool {
	return g.Status == GraphStatusPublished
}
