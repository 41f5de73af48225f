// Package dispatch implements the orchestrator side and the robot side of
// run assignment: the dispatcher hands queued runs to registered robots over
// the event bus, and robots report status transitions back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
)

// ErrNoRobotAvailable is returned when no registered robot has free capacity.
var ErrNoRobotAvailable = errors.New("no robot available")

// Robot tracks one registered robot process.
type Robot struct {
	ID       string
	Capacity int
	Active   int
	LastSeen time.Time
}

// Dispatcher assigns runs to robots round-robin, skipping robots at
// capacity. Robot registrations and status reports arrive on the status bus;
// assignments leave on the assignment bus.
type Dispatcher struct {
	logger      *slog.Logger
	assignments eventbus.EventPublisher
	status      eventbus.EventBus

	mu     sync.Mutex
	robots map[string]*Robot
	order  []string
	next   int
}

func NewDispatcher(logger *slog.Logger, assignments eventbus.EventPublisher, status eventbus.EventBus) *Dispatcher {
	return &Dispatcher{
		logger:      logger.With("module", "dispatcher"),
		assignments: assignments,
		status:      status,
		robots:      make(map[string]*Robot),
	}
}

// Start wires the status bus handlers and begins consuming.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.status.Handle(events.RobotRegisteredEvent, d.onRobotRegistered); err != nil {
		return err
	}

	if err := d.status.Handle(events.RobotStatusEvent, d.onRobotStatus); err != nil {
		return err
	}

	return d.status.Subscribe(ctx)
}

// Dispatch assigns a workflow run to the next robot with free capacity and
// returns the assignment ID.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, variables map[string]any) (string, error) {
	robot, err := d.pickRobot()
	if err != nil {
		return "", err
	}

	assignmentID := "asg-" + d.status.GenerateID()

	event := events.RunAssigned{
		BaseEvent: events.BaseEvent{
			ID:         d.status.GenerateID(),
			Type:       events.RunAssignedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflowID,
		},
		AssignmentID: assignmentID,
		RobotID:      robot.ID,
		Variables:    variables,
	}

	if err := d.assignments.Publish(ctx, workflowID, event); err != nil {
		d.release(robot.ID)

		return "", fmt.Errorf("failed to publish assignment: %w", err)
	}

	d.logger.Info("run assigned",
		"assignment_id", assignmentID, "workflow_id", workflowID, "robot_id", robot.ID)

	return assignmentID, nil
}

// Robots returns a snapshot of the registered fleet.
func (d *Dispatcher) Robots() []Robot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Robot, 0, len(d.robots))
	for _, r := range d.robots {
		out = append(out, *r)
	}

	return out
}

func (d *Dispatcher) pickRobot() (*Robot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for range len(d.order) {
		id := d.order[d.next%len(d.order)]
		d.next++

		robot, ok := d.robots[id]
		if !ok {
			continue
		}

		if robot.Capacity > 0 && robot.Active >= robot.Capacity {
			continue
		}

		robot.Active++

		return robot, nil
	}

	return nil, ErrNoRobotAvailable
}

func (d *Dispatcher) release(robotID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if robot, ok := d.robots[robotID]; ok && robot.Active > 0 {
		robot.Active--
	}
}

func (d *Dispatcher) onRobotRegistered(_ context.Context, event any) error {
	reg, ok := event.(*events.RobotRegistered)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.robots[reg.RobotID]; !exists {
		d.order = append(d.order, reg.RobotID)
	}

	d.robots[reg.RobotID] = &Robot{
		ID:       reg.RobotID,
		Capacity: reg.Capacity,
		LastSeen: time.Now().UTC(),
	}

	d.logger.Info("robot registered", "robot_id", reg.RobotID, "capacity", reg.Capacity)

	return nil
}

func (d *Dispatcher) onRobotStatus(_ context.Context, event any) error {
	status, ok := event.(*events.RobotStatus)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	d.mu.Lock()
	robot, known := d.robots[status.RobotID]
	if known {
		robot.LastSeen = time.Now().UTC()
	}
	d.mu.Unlock()

	if terminalStatus(status.Status) {
		d.release(status.RobotID)
	}

	d.logger.Debug("robot status",
		"robot_id", status.RobotID, "assignment_id", status.AssignmentID, "status", status.Status)

	return nil
}

func terminalStatus(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	default:
		return false
	}
}
