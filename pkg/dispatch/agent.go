package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/workflow"
)

// Agent is the robot side of the dispatch contract: it consumes assignments
// addressed to it, executes the workflow locally and reports every status
// transition back to the orchestrator.
type Agent struct {
	robotID  string
	capacity int
	logger   *slog.Logger

	engine      *engine.Engine
	repository  *workflow.Repository
	registry    *registry.Registry
	assignments eventbus.EventBus
	status      eventbus.EventPublisher
}

func NewAgent(
	robotID string,
	capacity int,
	logger *slog.Logger,
	eng *engine.Engine,
	repo *workflow.Repository,
	reg *registry.Registry,
	assignments eventbus.EventBus,
	status eventbus.EventPublisher,
) *Agent {
	return &Agent{
		robotID:     robotID,
		capacity:    capacity,
		logger:      logger.With("module", "robot_agent", "robot_id", robotID),
		engine:      eng,
		repository:  repo,
		registry:    reg,
		assignments: assignments,
		status:      status,
	}
}

// Start announces the robot to the fleet and begins consuming assignments.
func (a *Agent) Start(ctx context.Context) error {
	registered := events.RobotRegistered{
		BaseEvent: events.BaseEvent{
			ID:        a.assignments.GenerateID(),
			Type:      events.RobotRegisteredEvent,
			Timestamp: time.Now().UTC(),
		},
		RobotID:  a.robotID,
		Capacity: a.capacity,
	}

	if err := a.status.Publish(ctx, a.robotID, registered); err != nil {
		return fmt.Errorf("failed to announce robot: %w", err)
	}

	if err := a.assignments.Handle(events.RunAssignedEvent, a.onAssignment); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "robot agent started", "capacity", a.capacity)

	return a.assignments.Subscribe(ctx)
}

// onAssignment executes one assignment end to end. Assignments addressed to
// other robots are acked and ignored.
func (a *Agent) onAssignment(ctx context.Context, event any) error {
	assigned, ok := event.(*events.RunAssigned)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if assigned.RobotID != a.robotID {
		return nil
	}

	go a.execute(ctx, assigned)

	return nil
}

func (a *Agent) execute(ctx context.Context, assigned *events.RunAssigned) {
	logger := a.logger.With("assignment_id", assigned.AssignmentID, "workflow_id", assigned.WorkflowID)

	wf, err := a.repository.FetchByID(ctx, assigned.WorkflowID)
	if err != nil {
		logger.Error("failed to load workflow", "error", err)
		a.report(ctx, assigned, "", "failed", err, nil)

		return
	}

	graph, err := workflow.Compile(ctx, wf, a.registry)
	if err != nil {
		logger.Error("failed to compile workflow", "error", err)
		a.report(ctx, assigned, "", "failed", err, nil)

		return
	}

	handle, err := a.engine.Start(ctx, graph, assigned.Variables)
	if err != nil {
		logger.Error("failed to start run", "error", err)
		a.report(ctx, assigned, "", "failed", err, nil)

		return
	}

	a.report(ctx, assigned, handle.ID(), "running", nil, nil)

	result, err := handle.Wait(ctx)
	if err != nil {
		logger.Error("run wait interrupted", "error", err)
		a.report(ctx, assigned, handle.ID(), "failed", err, nil)

		return
	}

	var runErr error
	if result.Status == engine.StatusFailed {
		runErr = fmt.Errorf("run failed with %d error(s)", len(result.Errors))
	}

	a.report(ctx, assigned, handle.ID(), string(result.Status), runErr, result.Variables)
	logger.Info("assignment finished", "run_id", handle.ID(), "status", result.Status)
}

func (a *Agent) report(
	ctx context.Context,
	assigned *events.RunAssigned,
	runID, status string,
	err error,
	variables map[string]any,
) {
	event := events.RobotStatus{
		BaseEvent: events.BaseEvent{
			ID:         a.assignments.GenerateID(),
			Type:       events.RobotStatusEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: assigned.WorkflowID,
		},
		AssignmentID: assigned.AssignmentID,
		RobotID:      a.robotID,
		RunID:        runID,
		Status:       status,
	}

	if err != nil {
		event.Error = err.Error()
	}

	if variables != nil {
		event.Result = variables
	}

	if publishErr := a.status.Publish(context.WithoutCancel(ctx), a.robotID, event); publishErr != nil {
		a.logger.Warn("failed to publish robot status", "error", publishErr)
	}
}
