package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/persistence/file"
	"github.com/harvestcrm/automata/pkg/services"
)

func newRuleService(t *testing.T) (*services.Rule, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	return services.NewRule(persist), persist
}

func validRule() *models.AutomationRule {
	return &models.AutomationRule{
		Name:                "call new leads",
		TriggerType:         models.TriggerStatusChange,
		TriggerConfig:       map[string]any{"new_status": "lead"},
		TaskTitleTemplate:   "Call {{.FirstName}}",
		TaskPriority:        models.PriorityHigh,
		DelayHours:          24,
		ReminderOffsetHours: 1,
		IsActive:            true,
	}
}

func TestRuleCreate(t *testing.T) {
	svc, persist := newRuleService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.TimesTriggered)

	stored, err := persist.Rules().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "call new leads", stored.Name)
}

func TestRuleCreate_RejectsBadTemplate(t *testing.T) {
	svc, _ := newRuleService(t)

	rule := validRule()
	rule.TaskTitleTemplate = "Call {{.FirstName"

	_, err := svc.Create(context.Background(), rule)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestRuleCreate_RejectsBadDescriptionTemplate(t *testing.T) {
	svc, _ := newRuleService(t)

	rule := validRule()
	rule.TaskDescriptionTemplate = "Reach out to {{.FullName"

	_, err := svc.Create(context.Background(), rule)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestRuleCreate_RejectsUnknownTrigger(t *testing.T) {
	svc, _ := newRuleService(t)

	rule := validRule()
	rule.TriggerType = "telepathy"

	_, err := svc.Create(context.Background(), rule)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestRuleCreate_RequiresTitleTemplate(t *testing.T) {
	svc, _ := newRuleService(t)

	rule := validRule()
	rule.TaskTitleTemplate = ""

	_, err := svc.Create(context.Background(), rule)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestRuleUpdate_PreservesCounters(t *testing.T) {
	svc, persist := newRuleService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule())
	require.NoError(t, err)

	created.TimesTriggered = 5
	created.TasksCreated = 3
	require.NoError(t, persist.Rules().Save(ctx, created))

	replacement := validRule()
	replacement.Name = "call new leads fast"

	updated, err := svc.Update(ctx, created.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, "call new leads fast", updated.Name)
	assert.Equal(t, 5, updated.TimesTriggered)
	assert.Equal(t, 3, updated.TasksCreated)
}

func TestRuleListFilter(t *testing.T) {
	svc, _ := newRuleService(t)
	ctx := context.Background()

	statusRule := validRule()

	activityRule := validRule()
	activityRule.Name = "react to form submissions"
	activityRule.TriggerType = models.TriggerActivity
	activityRule.IsActive = false

	_, err := svc.Create(ctx, statusRule)
	require.NoError(t, err)
	_, err = svc.Create(ctx, activityRule)
	require.NoError(t, err)

	active, err := svc.List(ctx, persistence.RuleFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "call new leads", active[0].Name)

	activity, err := svc.List(ctx, persistence.RuleFilter{TriggerType: models.TriggerActivity})
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "react to form submissions", activity[0].Name)
}

func TestRuleDelete(t *testing.T) {
	svc, _ := newRuleService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.FetchByID(ctx, created.ID)
	assert.Error(t, err)
}
