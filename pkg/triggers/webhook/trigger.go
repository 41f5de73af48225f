// Package webhook provides an HTTP webhook trigger with centralized server
// management.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loomhq/loom/pkg/protocol"
)

// Trigger starts a run per HTTP request on a registered path. All webhook
// triggers in a process share one HTTP server.
type Trigger struct {
	ID         string
	WorkflowID string
	Path       string
	Method     string
	Enabled    bool

	logger *slog.Logger
}

func NewTrigger(ctx context.Context, config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	workflowID, _ := config["workflow_id"].(string)

	path, ok := config["path"].(string)
	if !ok {
		path = "/webhook"
	}

	method, ok := config["method"].(string)
	if !ok {
		method = http.MethodPost
	}

	trigger := &Trigger{
		ID:         id,
		WorkflowID: workflowID,
		Path:       path,
		Method:     method,
		Enabled:    true,
		logger: logger.With(
			"module", "webhook_trigger",
			"path", path,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(ctx); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate(_ context.Context) error {
	if !strings.HasPrefix(t.Path, "/") {
		return errors.New("webhook trigger path must start with '/'")
	}

	if t.WorkflowID == "" {
		return errors.New("webhook trigger workflow_id is required")
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "WebhookTrigger is disabled")

		return nil
	}

	manager := GetGlobalServerManager()
	if manager == nil {
		return errors.New("webhook server manager not initialized")
	}

	t.logger.InfoContext(ctx, "Starting WebhookTrigger")

	err := manager.RegisterWebhook(t.Path, &Handler{
		TriggerID:  t.ID,
		WorkflowID: t.WorkflowID,
		Method:     t.Method,
		Callback:   protocolCallback(callback),
		Logger:     t.logger,
	})
	if err != nil {
		return err
	}

	return manager.Start(ctx)
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping WebhookTrigger", "path", t.Path)

	if manager := GetGlobalServerManager(); manager != nil {
		manager.UnregisterWebhook(t.Path)
	}

	return nil
}
