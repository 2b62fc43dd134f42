package cmd

import (
	"log/slog"

	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/registry"
)

// NewRegistry builds the action registry with the built-in action set. The
// notifier backs the email action; the slog transport is the default until a
// real delivery provider is configured.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	registry.RegisterDefaults(reg, notifier.NewSlogNotifier(logger))

	return reg
}
