// Package log provides the log action, which records a templated message.
// It is the no-op-with-evidence action used while building graphs.
package log

import (
	"context"
	"log/slog"

	"github.com/harvestcrm/automata/pkg/protocol"
	"github.com/harvestcrm/automata/pkg/template"
)

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "log"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	if _, err := template.Parse(message); err != nil {
		return nil, err
	}

	return &Action{message: message, level: level}, nil
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Rendered against the contact, e.g. \"Stepped {{.FullName}}\".",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

type Action struct {
	message string
	level   string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "log", "node_id", actionCtx.NodeID)

	rendered, err := template.RenderContact(a.message, actionCtx.Contact)
	if err != nil {
		return nil, err
	}

	switch a.level {
	case "debug":
		logger.DebugContext(ctx, rendered)
	case "warn":
		logger.WarnContext(ctx, rendered)
	case "error":
		logger.ErrorContext(ctx, rendered)
	default:
		logger.InfoContext(ctx, rendered)
	}

	return map[string]any{"message": rendered}, nil
}
