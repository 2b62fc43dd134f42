package dispatcher_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/dispatcher"
	"github.com/harvestcrm/automata/pkg/engine"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence/file"
	"github.com/harvestcrm/automata/pkg/registry"
	"github.com/harvestcrm/automata/pkg/scheduler"
)

type fixture struct {
	dispatcher *dispatcher.Dispatcher
	persist    *file.Persistence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persist := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	eng := engine.NewEngine(persist, reg, nil, logger)
	sched := scheduler.NewScheduler(persist, nil, logger)

	return &fixture{
		dispatcher: dispatcher.NewDispatcher(persist, sched, eng, logger),
		persist:    persist,
	}
}

func (f *fixture) seedContact(t *testing.T, contact *models.Contact) {
	t.Helper()
	require.NoError(t, f.persist.ContactWriter().Put(context.Background(), contact))
}

func (f *fixture) taskCount(t *testing.T, contactID string) int {
	t.Helper()

	tasks, err := f.persist.Tasks().ListByContact(context.Background(), contactID)
	require.NoError(t, err)

	return len(tasks)
}

func TestOnStatusChange_NoOpTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada", Status: models.ContactStatusLead})

	require.NoError(t, f.dispatcher.OnStatusChange(ctx, "c1", models.ContactStatusLead, models.ContactStatusLead))

	assert.Zero(t, f.taskCount(t, "c1"))
}

func TestOnStatusChange_SchedulesFromTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada", Status: models.ContactStatusLead})

	require.NoError(t, f.dispatcher.OnStatusChange(ctx, "c1", models.ContactStatusLead, models.ContactStatusActive))

	tasks, err := f.persist.Tasks().ListByContact(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Onboard new customer", tasks[0].Title)
	assert.Equal(t, models.PriorityUrgent, tasks[0].Priority)
}

func TestOnStatusChange_ActivationPlansCadence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{
		ID:        "c1",
		FirstName: "Ada",
		Status:    models.ContactStatusLead,
		Cadence:   models.CadenceMonthly,
	})

	require.NoError(t, f.dispatcher.OnStatusChange(ctx, "c1", models.ContactStatusLead, models.ContactStatusActive))

	// One kickoff task plus three cadence touchpoints.
	assert.Equal(t, 4, f.taskCount(t, "c1"))
}

func TestOnStatusChange_AppliesMatchingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada", Status: models.ContactStatusLead})

	matching := &models.AutomationRule{
		ID:                  "r1",
		Name:                "call activated contacts",
		TriggerType:         models.TriggerStatusChange,
		TriggerConfig:       map[string]any{"new_status": "active"},
		TaskTitleTemplate:   "Call {{.FirstName}}",
		TaskPriority:        models.PriorityHigh,
		DelayHours:          24,
		ReminderOffsetHours: 1,
		IsActive:            true,
	}
	otherStatus := &models.AutomationRule{
		ID:                "r2",
		Name:              "chase lost contacts",
		TriggerType:       models.TriggerStatusChange,
		TriggerConfig:     map[string]any{"new_status": "lost"},
		TaskTitleTemplate: "Review loss of {{.FirstName}}",
		IsActive:          true,
	}
	inactive := &models.AutomationRule{
		ID:                "r3",
		Name:              "disabled rule",
		TriggerType:       models.TriggerStatusChange,
		TaskTitleTemplate: "never",
		IsActive:          false,
	}

	for _, rule := range []*models.AutomationRule{matching, otherStatus, inactive} {
		require.NoError(t, f.persist.Rules().Save(ctx, rule))
	}

	require.NoError(t, f.dispatcher.OnStatusChange(ctx, "c1", models.ContactStatusLead, models.ContactStatusActive))

	tasks, err := f.persist.Tasks().ListByContact(ctx, "c1")
	require.NoError(t, err)

	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}

	assert.Contains(t, titles, "Call Ada")
	assert.NotContains(t, titles, "Review loss of Ada")
	assert.NotContains(t, titles, "never")

	stored, err := f.persist.Rules().GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesTriggered)
	assert.Equal(t, 1, stored.TasksCreated)

	untouched, err := f.persist.Rules().GetByID(ctx, "r2")
	require.NoError(t, err)
	assert.Zero(t, untouched.TimesTriggered)
}

func TestOnActivity_DuplicateSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada", Status: models.ContactStatusActive})

	require.NoError(t, f.dispatcher.OnActivity(ctx, "c1", models.ActivityFormSubmitted))
	first := f.taskCount(t, "c1")
	require.Equal(t, 1, first)

	// Identical trigger inside the window is a no-op.
	require.NoError(t, f.dispatcher.OnActivity(ctx, "c1", models.ActivityFormSubmitted))
	assert.Equal(t, first, f.taskCount(t, "c1"))
}

func TestOnActivity_DifferentContactsUnaffected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada"})
	f.seedContact(t, &models.Contact{ID: "c2", FirstName: "Mary"})

	require.NoError(t, f.dispatcher.OnActivity(ctx, "c1", models.ActivityFormSubmitted))
	require.NoError(t, f.dispatcher.OnActivity(ctx, "c2", models.ActivityFormSubmitted))

	assert.Equal(t, 1, f.taskCount(t, "c1"))
	assert.Equal(t, 1, f.taskCount(t, "c2"))
}

func TestApplyRules_GraphEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContact(t, &models.Contact{ID: "c1", FirstName: "Ada"})

	graph := &models.WorkflowGraph{
		ID:     "g1",
		Name:   "welcome flow",
		Status: models.GraphStatusPublished,
		Nodes: map[string]*models.Node{
			"w1": {ID: "w1", Type: models.NodeTypeWait, Duration: 1, Unit: models.WaitUnitDays},
		},
		EntryNodeID: "w1",
	}
	require.NoError(t, f.persist.Graphs().Save(ctx, graph))

	rule := &models.AutomationRule{
		ID:                "r1",
		Name:              "enroll clickers",
		TriggerType:       models.TriggerActivity,
		TriggerConfig:     map[string]any{"activity_type": "email_clicked", "graph_id": "g1"},
		TaskTitleTemplate: "unused",
		IsActive:          true,
	}
	require.NoError(t, f.persist.Rules().Save(ctx, rule))

	require.NoError(t, f.dispatcher.OnActivity(ctx, "c1", models.ActivityEmailClicked))

	enrollment, err := f.persist.Enrollments().FindByGraphAndContact(ctx, "g1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
}

func TestOnScheduleTick_RunsOverdueSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.dispatcher.OnScheduleTick(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}
