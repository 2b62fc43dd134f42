// Package email provides the email action. It composes a subject and body
// from templates and hands the message to the configured notifier transport.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harvestcrm/automata/pkg/notifier"
	"github.com/harvestcrm/automata/pkg/protocol"
	"github.com/harvestcrm/automata/pkg/template"
)

// ErrEmailSubjectInvalid is returned when the subject template is missing.
var ErrEmailSubjectInvalid = errors.New("invalid email subject")

type ActionFactory struct {
	notifier notifier.Notifier
}

func NewActionFactory(n notifier.Notifier) *ActionFactory {
	return &ActionFactory{notifier: n}
}

func (*ActionFactory) ID() string {
	return "email"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	subject, ok := config["subject"].(string)
	if !ok || subject == "" {
		return nil, fmt.Errorf("missing or invalid 'subject' in configuration: %w", ErrEmailSubjectInvalid)
	}

	body, _ := config["body"].(string)
	to, _ := config["to"].(string)

	for _, tmpl := range []string{subject, body, to} {
		if tmpl == "" {
			continue
		}

		if _, err := template.Parse(tmpl); err != nil {
			return nil, err
		}
	}

	return &Action{
		notifier: f.notifier,
		subject:  subject,
		body:     body,
		to:       to,
	}, nil
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject template rendered against the contact.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Body template rendered against the contact.",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient template. Defaults to the contact's email address.",
			},
		},
		"required": []string{"subject"},
	}
}

type Action struct {
	notifier notifier.Notifier
	subject  string
	body     string
	to       string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "email", "node_id", actionCtx.NodeID)

	subject, err := template.RenderContact(a.subject, actionCtx.Contact)
	if err != nil {
		return nil, err
	}

	body, err := template.RenderContact(a.body, actionCtx.Contact)
	if err != nil {
		return nil, err
	}

	to := actionCtx.Contact.Email

	if a.to != "" {
		to, err = template.RenderContact(a.to, actionCtx.Contact)
		if err != nil {
			return nil, err
		}
	}

	msg := notifier.Message{
		ContactID: actionCtx.Contact.ID,
		To:        to,
		Subject:   subject,
		Body:      body,
	}

	if err := a.notifier.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoContext(ctx, "Email composed and dispatched", "to", to)

	return map[string]any{
		"to":      to,
		"subject": subject,
	}, nil
}
