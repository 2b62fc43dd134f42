// Package webhook provides the webhook action, which POSTs contact context
// to an external URL when an enrollment reaches the node.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harvestcrm/automata/pkg/protocol"
	"github.com/harvestcrm/automata/pkg/template"
)

const defaultTimeoutSeconds = 30

var (
	// ErrWebhookURLInvalid is returned when the webhook URL is missing.
	ErrWebhookURLInvalid = errors.New("invalid webhook url")
	// ErrWebhookServerError is returned when the endpoint answers 5xx.
	ErrWebhookServerError = errors.New("server error during webhook delivery")
)

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "webhook"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("missing or invalid 'url' in configuration: %w", ErrWebhookURLInvalid)
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	body, _ := config["body"].(string)
	if body != "" {
		if _, err := template.Parse(body); err != nil {
			return nil, fmt.Errorf("invalid body template: %w", err)
		}
	}

	retry := parseRetry(config["retry"])

	return &Action{
		url:     url,
		method:  strings.ToUpper(method),
		headers: headers,
		body:    body,
		timeout: defaultTimeoutSeconds * time.Second,
		retry:   retry,
	}, nil
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint the payload is delivered to.",
			},
			"method": map[string]any{
				"type":    "string",
				"default": "POST",
				"enum":    []string{"POST", "PUT", "PATCH"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Extra request headers.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Optional body template rendered against the contact. Defaults to a JSON snapshot of the contact.",
			},
			"retry": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "integer", "minimum": 1},
					"delay":    map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
		"required": []string{"url"},
	}
}

type retryConfig struct {
	attempts int
	delay    int
}

func parseRetry(raw any) retryConfig {
	retry := retryConfig{attempts: 1, delay: 0}

	retryMap, ok := raw.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok {
		retry.attempts = int(attempts)
	}

	if delay, ok := retryMap["delay"].(float64); ok {
		retry.delay = int(delay)
	}

	return retry
}

type Action struct {
	url     string
	method  string
	headers map[string]string
	body    string
	timeout time.Duration
	retry   retryConfig
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "webhook", "node_id", actionCtx.NodeID)
	logger.InfoContext(ctx, "Executing webhook action", "url", a.url)

	payload, err := a.buildPayload(actionCtx)
	if err != nil {
		return nil, err
	}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= a.retry.attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("Webhook retry attempt %d/%d", attempt, a.retry.attempts))
			time.Sleep(time.Duration(a.retry.delay) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, a.method, a.url, strings.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")

		for key, value := range a.headers {
			req.Header.Set(key, value)
		}

		client := &http.Client{Timeout: a.timeout}

		resp, err = client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("webhook delivery failed: %w", err)

			continue
		}

		if resp.StatusCode >= 500 && attempt < a.retry.attempts {
			if err := resp.Body.Close(); err != nil {
				logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("server error (status %d), retrying: %w", resp.StatusCode, ErrWebhookServerError)

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	return a.processResponse(ctx, resp, logger)
}

// buildPayload renders the configured body template, or serializes the
// contact with enrollment context when no template is configured.
func (a *Action) buildPayload(actionCtx protocol.ActionContext) (string, error) {
	if a.body != "" {
		return template.RenderContact(a.body, actionCtx.Contact)
	}

	snapshot := map[string]any{
		"graph_id":      actionCtx.GraphID,
		"node_id":       actionCtx.NodeID,
		"enrollment_id": actionCtx.EnrollmentID,
		"contact":       actionCtx.Contact,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	return string(data), nil
}

func (a *Action) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webhook returned status %d: %w", resp.StatusCode, ErrWebhookServerError)
	}

	logger.InfoContext(ctx, "Webhook delivered", "status", resp.StatusCode)

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}, nil
}
