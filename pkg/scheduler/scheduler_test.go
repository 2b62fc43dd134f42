package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence/file"
)

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persist := file.NewPersistence(t.TempDir())

	s := NewScheduler(persist, nil, logger)
	s.now = func() time.Time { return now }

	return s, persist
}

func testContact() *models.Contact {
	return &models.Contact{
		ID:        "c1",
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
	}
}

func TestScheduleTask_Defaults(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, persist := newTestScheduler(t, now)
	ctx := context.Background()

	task, err := s.ScheduleTask(ctx, testContact(), TaskSpec{
		Title:          "T",
		ReminderOffset: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, now.Add(24*time.Hour), task.DueAt)
	assert.Equal(t, now.Add(23*time.Hour), task.ReminderAt)
	assert.True(t, task.ReminderEnabled)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, models.TaskStatusTodo, task.Status)

	stored, err := persist.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, stored.Title)
}

func TestScheduleTask_ExplicitDueAndNoReminder(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	dueAt := now.Add(6 * time.Hour)

	task, err := s.ScheduleTask(context.Background(), testContact(), TaskSpec{
		Title:    "call back",
		Priority: models.PriorityUrgent,
		DueAt:    &dueAt,
	})
	require.NoError(t, err)

	assert.Equal(t, dueAt, task.DueAt)
	assert.False(t, task.ReminderEnabled)
	assert.Equal(t, models.PriorityUrgent, task.Priority)
}

func TestScheduleSequence_StandardOffsets(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, persist := newTestScheduler(t, now)
	ctx := context.Background()

	batch, tasks, err := s.ScheduleSequence(ctx, testContact(), SequenceStandard, 24)
	require.NoError(t, err)

	require.Len(t, tasks, 4)
	assert.Equal(t, 4, batch.TasksCount)
	assert.Equal(t, 0, batch.TasksCompleted)

	wantTitles := []string{"Initial follow-up", "Second follow-up", "Third follow-up", "Final follow-up"}
	wantPriorities := []models.TaskPriority{models.PriorityHigh, models.PriorityMedium, models.PriorityMedium, models.PriorityLow}

	start := now.Add(24 * time.Hour)
	for i, offsetDays := range []int{1, 3, 7, 14} {
		assert.Equal(t, start.Add(time.Duration(offsetDays)*24*time.Hour), tasks[i].DueAt)
		assert.Equal(t, tasks[i].DueAt.Add(-2*time.Hour), tasks[i].ReminderAt)
		assert.Equal(t, wantTitles[i], tasks[i].Title)
		assert.Equal(t, wantPriorities[i], tasks[i].Priority)
		assert.Equal(t, "Automated standard follow-up sequence for Grace Hopper", tasks[i].Description)
		assert.Equal(t, batch.ID, tasks[i].BatchID)
	}

	stored, err := persist.Batches().GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", stored.ContactID)
}

func TestScheduleSequence_UnknownFallsBackToStandard(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	_, tasks, err := s.ScheduleSequence(context.Background(), testContact(), "relentless", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, now.Add(24*time.Hour), tasks[0].DueAt)
}

func TestScheduleSequence_Tables(t *testing.T) {
	cases := []struct {
		sequence   string
		offsets    []int
		titles     []string
		priorities []models.TaskPriority
	}{
		{
			sequence:   SequenceAggressive,
			offsets:    []int{1, 2, 4, 7},
			titles:     []string{"Immediate follow-up", "Quick check-in", "Third touch", "One week follow-up"},
			priorities: []models.TaskPriority{models.PriorityUrgent, models.PriorityHigh, models.PriorityHigh, models.PriorityMedium},
		},
		{
			sequence:   SequenceGentle,
			offsets:    []int{3, 7, 14, 30},
			titles:     []string{"Gentle check-in", "One week follow-up", "Two week follow-up", "Monthly check-in"},
			priorities: []models.TaskPriority{models.PriorityLow, models.PriorityLow, models.PriorityLow, models.PriorityLow},
		},
	}

	for _, tc := range cases {
		t.Run(tc.sequence, func(t *testing.T) {
			now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
			s, _ := newTestScheduler(t, now)

			_, tasks, err := s.ScheduleSequence(context.Background(), testContact(), tc.sequence, 0)
			require.NoError(t, err)
			require.Len(t, tasks, len(tc.offsets))

			for i, offsetDays := range tc.offsets {
				assert.Equal(t, now.Add(time.Duration(offsetDays)*24*time.Hour), tasks[i].DueAt)
				assert.Equal(t, tc.titles[i], tasks[i].Title)
				assert.Equal(t, tc.priorities[i], tasks[i].Priority)
			}
		})
	}
}

func TestScheduleRecurring(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("weekly cadence yields three touchpoints", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		tasks, err := s.ScheduleRecurring(context.Background(), testContact(), models.CadenceWeekly, RecurringTemplate{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		for k, task := range tasks {
			assert.Equal(t, now.Add(time.Duration(7*(k+1))*24*time.Hour), task.DueAt)
			assert.Equal(t, task.DueAt.Add(-24*time.Hour), task.ReminderAt)
			assert.Equal(t, "Weekly check-in with Grace", task.Title)
			assert.Equal(t, "Scheduled weekly touchpoint", task.Description)
			assert.Equal(t, models.PriorityMedium, task.Priority)
		}
	})

	t.Run("cadence none yields nothing", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		tasks, err := s.ScheduleRecurring(context.Background(), testContact(), models.CadenceNone, RecurringTemplate{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("unknown cadence falls back to monthly rhythm", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		tasks, err := s.ScheduleRecurring(context.Background(), testContact(), models.Cadence("fortnightly"), RecurringTemplate{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		for k, task := range tasks {
			assert.Equal(t, now.Add(time.Duration(30*(k+1))*24*time.Hour), task.DueAt)
		}
	})

	t.Run("template overrides the defaults", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		tasks, err := s.ScheduleRecurring(context.Background(), testContact(), models.CadenceDaily, RecurringTemplate{
			Title:    "Ping the account",
			Priority: models.PriorityHigh,
		})
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		assert.Equal(t, "Ping the account", tasks[0].Title)
		assert.Equal(t, "Scheduled daily touchpoint", tasks[0].Description)
		assert.Equal(t, models.PriorityHigh, tasks[0].Priority)
	})
}

func TestOverduePriority(t *testing.T) {
	assert.Equal(t, models.PriorityUrgent, OverduePriority(45))
	assert.Equal(t, models.PriorityUrgent, OverduePriority(31))
	assert.Equal(t, models.PriorityHigh, OverduePriority(20))
	assert.Equal(t, models.PriorityHigh, OverduePriority(15))
	assert.Equal(t, models.PriorityMedium, OverduePriority(14))
	assert.Equal(t, models.PriorityMedium, OverduePriority(5))
}

func TestSweepOverdue(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, persist := newTestScheduler(t, now)
	ctx := context.Background()

	overdueAt := func(days int) *time.Time {
		at := now.Add(-time.Duration(days) * 24 * time.Hour)

		return &at
	}

	seed := []*models.Contact{
		{ID: "severely", FirstName: "Sev", NextFollowUpAt: overdueAt(45)},
		{ID: "moderately", FirstName: "Mod", NextFollowUpAt: overdueAt(20)},
		{ID: "slightly", FirstName: "Sli", NextFollowUpAt: overdueAt(5)},
		{ID: "ontrack", FirstName: "On", NextFollowUpAt: overdueAt(-3)},
	}
	for _, c := range seed {
		require.NoError(t, persist.ContactWriter().Put(ctx, c))
	}

	created, err := s.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	wantPriority := map[string]models.TaskPriority{
		"severely":   models.PriorityUrgent,
		"moderately": models.PriorityHigh,
		"slightly":   models.PriorityMedium,
	}

	for contactID, want := range wantPriority {
		tasks, err := persist.Tasks().ListByContact(ctx, contactID)
		require.NoError(t, err)
		require.Len(t, tasks, 1, contactID)
		assert.Equal(t, want, tasks[0].Priority, contactID)
		assert.Equal(t, now.Add(4*time.Hour), tasks[0].DueAt)
	}

	tasks, err := persist.Tasks().ListByContact(ctx, "ontrack")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// A second sweep inside the guard window creates nothing new.
	created, err = s.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestScheduleForStatusChange(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("no-op transition schedules nothing", func(t *testing.T) {
		s, persist := newTestScheduler(t, now)

		task, err := s.ScheduleForStatusChange(context.Background(), testContact(), models.ContactStatusLead, models.ContactStatusLead)
		require.NoError(t, err)
		assert.Nil(t, task)

		tasks, err := persist.Tasks().ListByContact(context.Background(), "c1")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("activation schedules an onboarding task", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForStatusChange(context.Background(), testContact(), models.ContactStatusLead, models.ContactStatusActive)
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, "Onboard new customer", task.Title)
		assert.Equal(t, "Send onboarding materials and schedule kickoff with Grace", task.Description)
		assert.Equal(t, models.PriorityUrgent, task.Priority)
		assert.Equal(t, now.Add(4*time.Hour), task.DueAt)
	})

	t.Run("new lead schedules qualification", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForStatusChange(context.Background(), testContact(), models.ContactStatusActive, models.ContactStatusLead)
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, "Qualify new lead", task.Title)
		assert.Equal(t, models.PriorityHigh, task.Priority)
		assert.Equal(t, now.Add(24*time.Hour), task.DueAt)
	})
}

func TestScheduleForActivity(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("form submission schedules a fast response", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForActivity(context.Background(), testContact(), models.ActivityFormSubmitted)
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, "Follow up on form submission", task.Title)
		assert.Equal(t, "Grace submitted a form - respond quickly", task.Description)
		assert.Equal(t, models.PriorityUrgent, task.Priority)
		assert.Equal(t, now.Add(time.Hour), task.DueAt)
	})

	t.Run("email open schedules an engagement follow-up", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForActivity(context.Background(), testContact(), models.ActivityEmailOpened)
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, "Follow up on email engagement", task.Title)
		assert.Equal(t, models.PriorityHigh, task.Priority)
		assert.Equal(t, now.Add(4*time.Hour), task.DueAt)
	})

	t.Run("email click outranks an open", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForActivity(context.Background(), testContact(), models.ActivityEmailClicked)
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, "High-priority follow up - clicked link", task.Title)
		assert.Equal(t, models.PriorityUrgent, task.Priority)
		assert.Equal(t, now.Add(2*time.Hour), task.DueAt)
	})

	t.Run("unknown activity schedules nothing", func(t *testing.T) {
		s, _ := newTestScheduler(t, now)

		task, err := s.ScheduleForActivity(context.Background(), testContact(), models.ActivityType("carrier_pigeon"))
		require.NoError(t, err)
		assert.Nil(t, task)
	})
}

func TestScheduleForRule(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	rule := &models.AutomationRule{
		ID:                      "r1",
		Name:                    "call new leads",
		TriggerType:             models.TriggerStatusChange,
		TaskTitleTemplate:       "Call {{.FirstName}} at {{.Company}}",
		TaskDescriptionTemplate: "New lead {{.FullName}} needs a first call.",
		TaskPriority:            models.PriorityHigh,
		DelayHours:              48,
		ReminderOffsetHours:     2,
	}

	contact := testContact()
	contact.Company = "Navy"

	task, err := s.ScheduleForRule(context.Background(), rule, contact)
	require.NoError(t, err)

	assert.Equal(t, "Call Grace at Navy", task.Title)
	assert.Equal(t, "New lead Grace Hopper needs a first call.", task.Description)
	assert.Equal(t, now.Add(48*time.Hour), task.DueAt)
	assert.Equal(t, now.Add(46*time.Hour), task.ReminderAt)
	assert.Equal(t, models.PriorityHigh, task.Priority)
}
