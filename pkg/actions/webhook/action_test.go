package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/actions/webhook"
	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookAction_DeliversContactSnapshot(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	factory := webhook.NewActionFactory()

	action, err := factory.Create(map[string]any{"url": server.URL})
	require.NoError(t, err)

	actionCtx := protocol.ActionContext{
		GraphID:      "g1",
		NodeID:       "n1",
		EnrollmentID: "e1",
		Contact:      &models.Contact{ID: "c1", FirstName: "Ada"},
	}

	result, err := action.Execute(context.Background(), actionCtx, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result["status_code"])

	assert.Equal(t, "g1", received["graph_id"])
	contact, ok := received["contact"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", contact["first_name"])
}

func TestWebhookAction_RendersBodyTemplate(t *testing.T) {
	var got string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(body)
	}))
	defer server.Close()

	action, err := webhook.NewActionFactory().Create(map[string]any{
		"url":  server.URL,
		"body": `{"name": "{{.FirstName}}"}`,
	})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), protocol.ActionContext{Contact: &models.Contact{FirstName: "Ada"}}, discardLogger())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Ada"}`, got)
}

func TestWebhookAction_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	action, err := webhook.NewActionFactory().Create(map[string]any{
		"url":   server.URL,
		"retry": map[string]any{"attempts": float64(2), "delay": float64(0)},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ActionContext{Contact: &models.Contact{}}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result["status_code"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookAction_ClientErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	action, err := webhook.NewActionFactory().Create(map[string]any{"url": server.URL})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), protocol.ActionContext{Contact: &models.Contact{}}, discardLogger())
	assert.Error(t, err)
}

func TestWebhookFactory_RequiresURL(t *testing.T) {
	_, err := webhook.NewActionFactory().Create(map[string]any{})
	assert.ErrorIs(t, err, webhook.ErrWebhookURLInvalid)
}
