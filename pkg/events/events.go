// Package events defines event types for run lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Topic carries run lifecycle events.
const Topic = "loom.run.events"

// DispatchTopic carries run assignments from the orchestrator to robots.
const DispatchTopic = "loom.dispatch.assignments"

// RobotStatusTopic carries robot status reports back to the orchestrator.
const RobotStatusTopic = "loom.dispatch.status"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	NodeFinishedEvent EventType = "run.node.finished"
	NodeFailedEvent   EventType = "run.node.failed"

	RunAssignedEvent     EventType = "dispatch.run.assigned"
	RobotStatusEvent     EventType = "dispatch.robot.status"
	RobotRegisteredEvent EventType = "dispatch.robot.registered"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	RunID     string         `json:"run_id"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunCompleted struct {
	BaseEvent

	RunID         string        `json:"run_id"`
	Status        string        `json:"status"`
	Duration      time.Duration `json:"duration"`
	NodesExecuted int           `json:"nodes_executed"`
}

func (e RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	NodeID   string        `json:"node_id,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType { return RunFailedEvent }

type RunCancelled struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e RunCancelled) GetType() EventType { return RunCancelledEvent }

type NodeFinished struct {
	BaseEvent

	RunID      string         `json:"run_id"`
	NodeID     string         `json:"node_id"`
	OutputData map[string]any `json:"output_data,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

func (e NodeFinished) GetType() EventType { return NodeFinishedEvent }

type NodeFailed struct {
	BaseEvent

	RunID     string        `json:"run_id"`
	NodeID    string        `json:"node_id"`
	Error     string        `json:"error"`
	Recovered bool          `json:"recovered"`
	Duration  time.Duration `json:"duration"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }

// RunAssigned is published by the dispatcher when a queued run is handed to a
// registered robot process.
type RunAssigned struct {
	BaseEvent

	AssignmentID string         `json:"assignment_id"`
	RobotID      string         `json:"robot_id"`
	Variables    map[string]any `json:"variables,omitempty"`
	Credential   string         `json:"credential,omitempty"`
}

func (e RunAssigned) GetType() EventType { return RunAssignedEvent }

// RobotStatus reports a status transition (and terminal result) for an
// assigned run back to the orchestrator.
type RobotStatus struct {
	BaseEvent

	AssignmentID string         `json:"assignment_id"`
	RobotID      string         `json:"robot_id"`
	RunID        string         `json:"run_id,omitempty"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
}

func (e RobotStatus) GetType() EventType { return RobotStatusEvent }

// RobotRegistered announces a robot process joining the fleet.
type RobotRegistered struct {
	BaseEvent

	RobotID  string `json:"robot_id"`
	Capacity int    `json:"capacity"`
}

func (e RobotRegistered) GetType() EventType { return RobotRegisteredEvent }
