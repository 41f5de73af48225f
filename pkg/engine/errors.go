// Package engine interprets a workflow graph at runtime: it resolves data
// dependencies between nodes, drives control flow, enforces per-node timeout
// and retry policy, and reports structured results and errors.
package engine

import (
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// Sentinel errors for the runtime error taxonomy. Load-time errors
// (SchemaViolation, UnknownNodeType, InvalidEdge) live with the loader in
// pkg/workflow and pkg/registry.
var (
	// ErrCancelled marks external cancellation. It is never retried and never
	// caught by try/catch; it always propagates as the final run status.
	ErrCancelled = errors.New("run cancelled")

	// ErrTypeMismatch marks a data-edge value incompatible with the
	// destination port kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNodeExecution marks a node-reported failure.
	ErrNodeExecution = errors.New("node execution failed")

	// ErrTimeout marks a node or per-item execution exceeding its declared
	// limit. Timeouts behave like node execution errors for retry and catch
	// purposes.
	ErrTimeout = errors.New("node timed out")

	// ErrDataCycle marks a data edge whose producer is not reachable before
	// its consumer along the execution path.
	ErrDataCycle = errors.New("data dependency cycle")
)

// TypeMismatchError names the node, port and kinds involved in a failed
// data conversion.
type TypeMismatchError struct {
	NodeID   string
	Port     string
	Expected models.DataKind
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch on node %s port %q: expected %s, got %s",
		e.NodeID, e.Port, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// NodeExecutionError carries the failing node's identity and message. A
// timeout is a NodeExecutionError with Timeout set.
type NodeExecutionError struct {
	NodeID   string
	NodeType string
	Message  string
	Attempts int
	Timeout  bool
	Err      error
}

func (e *NodeExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("node %s (%s) timed out after %d attempt(s)", e.NodeID, e.NodeType, e.Attempts)
	}

	return fmt.Sprintf("node %s (%s) failed: %s", e.NodeID, e.NodeType, e.Message)
}

func (e *NodeExecutionError) Unwrap() error {
	if e.Timeout {
		return ErrTimeout
	}

	if e.Err != nil {
		return e.Err
	}

	return ErrNodeExecution
}

// IsCancelled reports whether err represents run cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout reports whether err represents a declared-limit timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// FailingNode extracts the node ID from an execution error chain, if present.
func FailingNode(err error) string {
	var nodeErr *NodeExecutionError
	if errors.As(err, &nodeErr) {
		return nodeErr.NodeID
	}

	var typeErr *TypeMismatchError
	if errors.As(err, &typeErr) {
		return typeErr.NodeID
	}

	return ""
}
