package file

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestGraphRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	graph := &models.WorkflowGraph{
		ID:     uuid.NewString(),
		Name:   "welcome-sequence",
		Status: models.GraphStatusDraft,
		Nodes: map[string]*models.Node{
			"start": {
				ID:         "start",
				Type:       models.NodeTypeAction,
				ActionType: "log",
			},
		},
		EntryNodeID: "start",
	}

	require.NoError(t, p.Graphs().Save(ctx, graph))

	loaded, err := p.Graphs().GetByID(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.Name, loaded.Name)
	assert.Equal(t, "start", loaded.EntryNodeID)
	require.Contains(t, loaded.Nodes, "start")
	assert.Equal(t, models.NodeTypeAction, loaded.Nodes["start"].Type)

	graphs, err := p.Graphs().List(ctx)
	require.NoError(t, err)
	assert.Len(t, graphs, 1)

	require.NoError(t, p.Graphs().Delete(ctx, graph.ID))

	_, err = p.Graphs().GetByID(ctx, graph.ID)
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestGraphRepository_GetMissing(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.Graphs().GetByID(context.Background(), "nope")
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestEnrollmentRepository_FindAndResume(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := &models.Enrollment{
		ID:        uuid.NewString(),
		GraphID:   "graph-1",
		ContactID: "contact-1",
		Status:    models.EnrollmentStatusPaused,
		ResumeAt:  &past,
	}
	notYet := &models.Enrollment{
		ID:        uuid.NewString(),
		GraphID:   "graph-1",
		ContactID: "contact-2",
		Status:    models.EnrollmentStatusPaused,
		ResumeAt:  &future,
	}
	running := &models.Enrollment{
		ID:        uuid.NewString(),
		GraphID:   "graph-2",
		ContactID: "contact-1",
		Status:    models.EnrollmentStatusActive,
	}

	for _, e := range []*models.Enrollment{due, notYet, running} {
		require.NoError(t, p.Enrollments().Save(ctx, e))
	}

	found, err := p.Enrollments().FindByGraphAndContact(ctx, "graph-1", "contact-1")
	require.NoError(t, err)
	assert.Equal(t, due.ID, found.ID)

	_, err = p.Enrollments().FindByGraphAndContact(ctx, "graph-9", "contact-1")
	assert.True(t, persistence.IsEnrollmentNotFound(err))

	byGraph, err := p.Enrollments().ListByGraph(ctx, "graph-1")
	require.NoError(t, err)
	assert.Len(t, byGraph, 2)

	resumable, err := p.Enrollments().ListDueForResume(ctx, now)
	require.NoError(t, err)
	require.Len(t, resumable, 1)
	assert.Equal(t, due.ID, resumable[0].ID)
}

func TestRuleRepository_Filter(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	activity := &models.AutomationRule{
		ID:          uuid.NewString(),
		Name:        "hot lead follow-up",
		TriggerType: models.TriggerActivity,
		IsActive:    true,
	}
	statusInactive := &models.AutomationRule{
		ID:          uuid.NewString(),
		Name:        "won deal kickoff",
		TriggerType: models.TriggerStatusChange,
		IsActive:    false,
	}

	require.NoError(t, p.Rules().Save(ctx, activity))
	require.NoError(t, p.Rules().Save(ctx, statusInactive))

	all, err := p.Rules().List(ctx, persistence.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := p.Rules().List(ctx, persistence.RuleFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, activity.ID, active[0].ID)

	byType, err := p.Rules().List(ctx, persistence.RuleFilter{TriggerType: models.TriggerStatusChange})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, statusInactive.ID, byType[0].ID)
}

func TestContactRepository_ListOverdue(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	overdue := &models.Contact{ID: "c1", Status: models.ContactStatusActive, NextFollowUpAt: &past}
	lost := &models.Contact{ID: "c2", Status: models.ContactStatusLost, NextFollowUpAt: &past}
	upcoming := &models.Contact{ID: "c3", Status: models.ContactStatusActive, NextFollowUpAt: &future}
	unscheduled := &models.Contact{ID: "c4", Status: models.ContactStatusActive}

	for _, c := range []*models.Contact{overdue, lost, upcoming, unscheduled} {
		require.NoError(t, p.ContactWriter().Put(ctx, c))
	}

	got, err := p.Contacts().ListOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}

func TestTaskRepository_DueReminders(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sent := now.Add(-time.Hour)

	due := &models.ScheduledTask{
		ID:              uuid.NewString(),
		ContactID:       "c1",
		Title:           "Call Ada",
		Status:          models.TaskStatusTodo,
		ReminderEnabled: true,
		ReminderAt:      now.Add(-time.Minute),
	}
	alreadySent := &models.ScheduledTask{
		ID:              uuid.NewString(),
		ContactID:       "c1",
		Title:           "Send deck",
		Status:          models.TaskStatusTodo,
		ReminderEnabled: true,
		ReminderAt:      now.Add(-time.Minute),
		ReminderSentAt:  &sent,
	}
	completed := &models.ScheduledTask{
		ID:              uuid.NewString(),
		ContactID:       "c2",
		Title:           "Check in",
		Status:          models.TaskStatusCompleted,
		ReminderEnabled: true,
		ReminderAt:      now.Add(-time.Minute),
	}

	for _, task := range []*models.ScheduledTask{due, alreadySent, completed} {
		require.NoError(t, p.Tasks().Create(ctx, task))
	}

	reminders, err := p.Tasks().ListDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, due.ID, reminders[0].ID)

	byContact, err := p.Tasks().ListByContact(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, byContact, 2)
}

func TestBatchRepository_IncrementCompleted(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	batch := &models.ScheduledBatch{
		ID:         uuid.NewString(),
		Name:       "standard follow-up sequence",
		Type:       "sequence",
		ContactID:  "c1",
		TasksCount: 2,
	}
	require.NoError(t, p.Batches().Create(ctx, batch))

	require.NoError(t, p.Batches().IncrementCompleted(ctx, batch.ID))

	loaded, err := p.Batches().GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.TasksCompleted)
	assert.False(t, loaded.IsCompleted())
	assert.Nil(t, loaded.CompletedAt)

	require.NoError(t, p.Batches().IncrementCompleted(ctx, batch.ID))

	loaded, err = p.Batches().GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsCompleted())
	assert.NotNil(t, loaded.CompletedAt)
}

func TestRecommendationRepository_Deduplicates(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: "c1",
		Kind:      "overdue_followup",
		Title:     "Follow up with Ada",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, p.Recommendations().Create(ctx, first))

	duplicate := &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: "c1",
		Kind:      "overdue_followup",
		Title:     "Follow up with Ada",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	err := p.Recommendations().Create(ctx, duplicate)
	assert.True(t, persistence.IsDuplicateRecommendation(err))

	// A different kind for the same contact is not a duplicate.
	otherKind := &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: "c1",
		Kind:      "stale_deal",
		Title:     "Deal going cold",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, p.Recommendations().Create(ctx, otherKind))

	// Dismissal clears the guard.
	require.NoError(t, p.Recommendations().Dismiss(ctx, first.ID))
	require.NoError(t, p.Recommendations().Create(ctx, duplicate))
}

func TestRecommendationRepository_WindowFollowsCallerClock(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	// A pinned clock far in the past: the marker is long expired by the
	// wall clock but still live at the caller's clock.
	clock := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: "c1",
		Kind:      "overdue_followup",
		Title:     "Follow up with Ada",
		ExpiresAt: clock.Add(7 * 24 * time.Hour),
		CreatedAt: clock,
	}
	require.NoError(t, p.Recommendations().Create(ctx, first))

	duplicate := &models.Recommendation{
		ID:        uuid.NewString(),
		ContactID: "c1",
		Kind:      "overdue_followup",
		Title:     "Follow up with Ada",
		ExpiresAt: clock.Add(7 * 24 * time.Hour),
		CreatedAt: clock,
	}
	err := p.Recommendations().Create(ctx, duplicate)
	assert.True(t, persistence.IsDuplicateRecommendation(err))

	// Once the caller's clock moves past the expiry the slot reopens.
	later := clock.Add(8 * 24 * time.Hour)
	duplicate.CreatedAt = later
	duplicate.ExpiresAt = later.Add(7 * 24 * time.Hour)
	require.NoError(t, p.Recommendations().Create(ctx, duplicate))
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := newTestPersistence(t)

	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}
