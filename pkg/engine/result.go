package engine

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a run or of one execution path.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrorKind classifies entries on the run's error trail.
type ErrorKind string

const (
	ErrorKindExecution    ErrorKind = "execution"
	ErrorKindTimeout      ErrorKind = "timeout"
	ErrorKindTypeMismatch ErrorKind = "type_mismatch"
	ErrorKindCancelled    ErrorKind = "cancelled"
)

// RunError is one entry on the run's error trail. Recovered entries were
// absorbed by retry, try/catch, or a non-fail-fast parallel construct; they
// are kept for observability.
type RunError struct {
	NodeID    string    `json:"node_id,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Recovered bool      `json:"recovered"`
	At        time.Time `json:"at"`
}

// Result is the aggregated outcome of one run: the single overall status
// plus every error encountered, including absorbed ones.
type Result struct {
	RunID         string         `json:"run_id"`
	WorkflowID    string         `json:"workflow_id"`
	Status        Status         `json:"status"`
	Errors        []RunError     `json:"errors,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	NodesExecuted int            `json:"nodes_executed"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrCancelled):
		return ErrorKindCancelled
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrTypeMismatch):
		return ErrorKindTypeMismatch
	default:
		return ErrorKindExecution
	}
}
