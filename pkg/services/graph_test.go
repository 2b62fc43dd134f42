package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/persistence/file"
	"github.com/harvestcrm/automata/pkg/registry"
	"github.com/harvestcrm/automata/pkg/services"
)

func newGraphService(t *testing.T) (*services.Graph, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persist := file.NewPersistence(t.TempDir())

	r := registry.NewRegistry(logger)
	registry.RegisterDefaults(r, notifier.NewSlogNotifier(logger))

	return services.NewGraph(persist, r), persist
}

func validGraph() *models.WorkflowGraph {
	return &models.WorkflowGraph{
		Name: "welcome flow",
		Nodes: map[string]*models.Node{
			"n1": {
				ID:         "n1",
				Type:       models.NodeTypeAction,
				ActionType: "log",
				ActionData: map[string]any{"message": "hello {{.FirstName}}"},
			},
		},
		EntryNodeID: "n1",
	}
}

func TestGraphCreate(t *testing.T) {
	svc, persist := newGraphService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validGraph())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.GraphStatusDraft, created.Status)
	assert.Equal(t, 1, created.Version)

	stored, err := persist.Graphs().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome flow", stored.Name)
}

func TestGraphCreate_RejectsDanglingReference(t *testing.T) {
	svc, _ := newGraphService(t)

	graph := validGraph()
	graph.Nodes["n1"].Next = "missing"

	_, err := svc.Create(context.Background(), graph)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestGraphCreate_RejectsBadActionData(t *testing.T) {
	svc, _ := newGraphService(t)

	graph := validGraph()
	// log requires a message.
	graph.Nodes["n1"].ActionData = map[string]any{}

	_, err := svc.Create(context.Background(), graph)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestGraphCreate_RejectsMissingName(t *testing.T) {
	svc, _ := newGraphService(t)

	graph := validGraph()
	graph.Name = ""

	_, err := svc.Create(context.Background(), graph)
	assert.ErrorIs(t, err, services.ErrGraphNameRequired)
}

func TestGraphPublishLifecycle(t *testing.T) {
	svc, _ := newGraphService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validGraph())
	require.NoError(t, err)

	published, err := svc.Publish(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GraphStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.IsEnrollable())

	// Publishing twice is a conflict.
	_, err = svc.Publish(ctx, created.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyPublished)
	assert.True(t, services.IsConflictError(err))

	// Published graphs are immutable.
	_, err = svc.Update(ctx, created.ID, validGraph())
	assert.ErrorIs(t, err, services.ErrCannotModifyPublished)

	archived, err := svc.Archive(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GraphStatusArchived, archived.Status)
	assert.False(t, archived.IsEnrollable())

	// Archived graphs stay retired.
	_, err = svc.Publish(ctx, created.ID)
	assert.ErrorIs(t, err, services.ErrCannotPublishArchived)
}

func TestGraphUpdate_PreservesCountersAndVersion(t *testing.T) {
	svc, persist := newGraphService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validGraph())
	require.NoError(t, err)

	created.TotalEnrolled = 7
	require.NoError(t, persist.Graphs().Save(ctx, created))

	replacement := validGraph()
	replacement.Name = "renamed flow"

	updated, err := svc.Update(ctx, created.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, "renamed flow", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 7, updated.TotalEnrolled)
	assert.Equal(t, 1, updated.Version)
}

func TestGraphDelete(t *testing.T) {
	svc, _ := newGraphService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validGraph())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.FetchByID(ctx, created.ID)
	assert.Error(t, err)
}

func TestGraphHealthCheck(t *testing.T) {
	svc, _ := newGraphService(t)

	msg, healthy := svc.HealthCheck(context.Background())
	assert.True(t, healthy)
	assert.NotEmpty(t, msg)
}
