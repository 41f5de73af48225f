package models

import "time"

// WorkflowNode represents a node instance in a workflow graph. Its shape is
// immutable during a run: property values may be read, never mutated.
type WorkflowNode struct {
	ID        string         `json:"id"             validate:"required"`
	Type      string         `json:"type"           validate:"required"`
	Name      string         `json:"name,omitempty"`
	Config    map[string]any `json:"properties,omitempty"`
	Enabled   bool           `json:"enabled"`
	PositionX int            `json:"position_x,omitempty"`
	PositionY int            `json:"position_y,omitempty"`
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusSuccess   NodeStatus = "success"
	NodeStatusError     NodeStatus = "error"
	NodeStatusCancelled NodeStatus = "cancelled"
)

// NodeRecord captures one node execution for the run's result log.
type NodeRecord struct {
	NodeID    string         `json:"node_id"`
	Data      map[string]any `json:"data,omitempty"`
	Status    NodeStatus     `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// Standard node property names the engine interprets itself, regardless of
// node type.
const (
	PropTimeout       = "timeout"        // seconds, float
	PropRetryCount    = "retry_count"    // attempts after the first failure
	PropRetryInterval = "retry_interval" // seconds between attempts, float
)
