// Package registry holds the closed set of action factories the engine can
// execute, and validates node action_data against their schemas.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/harvestcrm/automata/pkg/protocol"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(config)
}

// AvailableActions returns the registered action type ids, sorted.
func (r *Registry) AvailableActions() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// ValidateActionData checks node action_data against the registered schema
// for its action type.
func (r *Registry) ValidateActionData(actionType string, actionData map[string]any) error {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return fmt.Errorf("action type '%s' not registered", actionType)
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	documentLoader := gojsonschema.NewGoLoader(actionData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate action data: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		messages := make([]string, 0, len(errs))

		for _, desc := range errs {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid action data for '%s': %v", actionType, messages)
	}

	return nil
}
