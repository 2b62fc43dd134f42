package log_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logaction "github.com/harvestcrm/automata/pkg/actions/log"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/protocol"
)

func TestLogAction_Execute(t *testing.T) {
	factory := logaction.NewActionFactory()
	assert.Equal(t, "log", factory.ID())

	action, err := factory.Create(map[string]any{"message": "Touched {{.FirstName}}"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	actionCtx := protocol.ActionContext{
		NodeID:  "n1",
		Contact: &models.Contact{FirstName: "Ada"},
	}

	result, err := action.Execute(context.Background(), actionCtx, logger)
	require.NoError(t, err)
	assert.Equal(t, "Touched Ada", result["message"])
}

func TestLogActionFactory_RejectsBadTemplate(t *testing.T) {
	_, err := logaction.NewActionFactory().Create(map[string]any{"message": "{{.Broken"})
	assert.Error(t, err)
}
