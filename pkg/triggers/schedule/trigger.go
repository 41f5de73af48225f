// Package schedule provides a cron-based trigger.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomhq/loom/pkg/protocol"
	"github.com/robfig/cron/v3"
)

// ScheduleTrigger starts a run on a standard five-field cron schedule.
// Overlapping firings are skipped rather than queued.
type ScheduleTrigger struct {
	ID         string
	CronExpr   string
	WorkflowID string
	Enabled    bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewScheduleTrigger(config map[string]any, logger *slog.Logger) (*ScheduleTrigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflow_id"].(string)

	trigger := &ScheduleTrigger{
		ID:         id,
		CronExpr:   cronExpr,
		WorkflowID: workflowID,
		Enabled:    true,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(context.Background()); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *ScheduleTrigger) Validate(_ context.Context) error {
	switch {
	case t.ID == "":
		return errors.New("schedule trigger ID is required")
	case t.WorkflowID == "":
		return errors.New("schedule trigger workflow_id is required")
	case t.CronExpr == "":
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *ScheduleTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "ScheduleTrigger is disabled")

		return nil
	}

	t.logger.InfoContext(ctx, "Starting ScheduleTrigger")
	t.callback = callback

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := scheduler.AddFunc(t.CronExpr, t.fire); err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", t.ID, err)
	}

	t.cron = scheduler
	t.cron.Start()

	return nil
}

// fire starts one run with the firing time as initial variables. The
// callback runs detached so a slow start cannot block the cron goroutine.
func (t *ScheduleTrigger) fire() {
	t.logger.Info("Cron job triggered")

	initialVariables := map[string]any{
		"triggered_at": time.Now().UTC().Format(time.RFC3339),
		"trigger_id":   t.ID,
	}

	go func() {
		if err := t.callback(context.Background(), t.WorkflowID, initialVariables); err != nil {
			t.logger.Error("Error starting run for trigger", "error", err)
		}
	}()
}

func (t *ScheduleTrigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping ScheduleTrigger", "id", t.ID)

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
