// Package protocol defines the contracts between the engine and the
// pluggable action handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/harvestcrm/automata/pkg/models"
)

// ActionContext carries the state an action handler may read while executing
// one node of an enrollment.
type ActionContext struct {
	GraphID      string
	NodeID       string
	EnrollmentID string
	Contact      *models.Contact
}

// Action is one executable node handler. Execution failures are reported as
// errors; the engine decides what a failure does to the enrollment.
type Action interface {
	Execute(ctx context.Context, actionCtx ActionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionFactory builds actions from node action_data and describes the shape
// that data must have.
type ActionFactory interface {
	ID() string
	Create(config map[string]any) (Action, error)

	// Schema returns the JSON schema action_data is validated against when a
	// graph is saved.
	Schema() map[string]any
}
