package registry_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/registry"
)

func newTestRegistry() *registry.Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := registry.NewRegistry(logger)
	registry.RegisterDefaults(r, notifier.NewSlogNotifier(logger))

	return r
}

func TestRegistry_AvailableActions(t *testing.T) {
	r := newTestRegistry()

	assert.Equal(t, []string{"email", "log", "webhook"}, r.AvailableActions())
}

func TestRegistry_CreateAction(t *testing.T) {
	r := newTestRegistry()

	action, err := r.CreateAction("log", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.NotNil(t, action)

	_, err = r.CreateAction("teleport", nil)
	assert.Error(t, err)
}

func TestRegistry_ValidateActionData(t *testing.T) {
	r := newTestRegistry()

	err := r.ValidateActionData("log", map[string]any{"message": "hello", "level": "info"})
	assert.NoError(t, err)

	// Missing required property.
	err = r.ValidateActionData("log", map[string]any{"level": "info"})
	assert.Error(t, err)

	// Wrong type.
	err = r.ValidateActionData("webhook", map[string]any{"url": 42})
	assert.Error(t, err)

	// Unknown action type.
	err = r.ValidateActionData("teleport", map[string]any{})
	assert.Error(t, err)
}
