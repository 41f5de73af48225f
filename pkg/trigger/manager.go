// Package trigger manages the trigger lifecycle for loaded workflows: it
// instantiates each workflow's declared triggers and starts runs when they
// fire.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
)

// Manager owns the running triggers, keyed by workflow ID. Trigger failures
// at fire time are logged here; the run boundary stays clean.
type Manager struct {
	logger   *slog.Logger
	registry *registry.Registry
	callback protocol.TriggerCallback

	mu      sync.Mutex
	running map[string][]protocol.Trigger
}

func NewManager(logger *slog.Logger, reg *registry.Registry, callback protocol.TriggerCallback) *Manager {
	return &Manager{
		logger:   logger.With("module", "trigger_manager"),
		registry: reg,
		callback: callback,
		running:  make(map[string][]protocol.Trigger),
	}
}

// StartWorkflow instantiates and starts every enabled trigger declared on the
// workflow. Triggers already running for this workflow are stopped first.
func (m *Manager) StartWorkflow(ctx context.Context, wf *models.Workflow) error {
	if err := m.StopWorkflow(ctx, wf.ID); err != nil {
		return err
	}

	var started []protocol.Trigger

	for _, spec := range wf.Triggers {
		if !spec.Enabled {
			continue
		}

		config := make(map[string]any, len(spec.Config)+2)
		for k, v := range spec.Config {
			config[k] = v
		}

		config["id"] = spec.ID
		config["workflow_id"] = wf.ID

		trig, err := m.registry.CreateTrigger(ctx, spec.Type, config)
		if err != nil {
			m.stopAll(ctx, started)

			return fmt.Errorf("failed to create trigger %s for workflow %s: %w", spec.ID, wf.ID, err)
		}

		if err := trig.Start(ctx, m.callback); err != nil {
			m.stopAll(ctx, started)

			return fmt.Errorf("failed to start trigger %s for workflow %s: %w", spec.ID, wf.ID, err)
		}

		m.logger.Info("trigger started", "workflow_id", wf.ID, "trigger_id", spec.ID, "type", spec.Type)
		started = append(started, trig)
	}

	m.mu.Lock()
	m.running[wf.ID] = started
	m.mu.Unlock()

	return nil
}

// StopWorkflow stops every trigger running for a workflow.
func (m *Manager) StopWorkflow(ctx context.Context, workflowID string) error {
	m.mu.Lock()
	triggers := m.running[workflowID]
	delete(m.running, workflowID)
	m.mu.Unlock()

	m.stopAll(ctx, triggers)

	return nil
}

// StopAll stops every running trigger.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	all := m.running
	m.running = make(map[string][]protocol.Trigger)
	m.mu.Unlock()

	for _, triggers := range all {
		m.stopAll(ctx, triggers)
	}
}

func (m *Manager) stopAll(ctx context.Context, triggers []protocol.Trigger) {
	for _, trig := range triggers {
		if err := trig.Stop(ctx); err != nil {
			m.logger.Warn("failed to stop trigger", "error", err)
		}
	}
}
