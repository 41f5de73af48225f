// Package protocol defines the interfaces and contracts for pluggable nodes
// and triggers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/schema"
)

// Result communicates the outcome of one node execution: the values produced
// on data-out ports and the execution-out ports to activate next. An empty
// Next ends the execution path at this node; more than one entry fans out
// into concurrent paths.
type Result struct {
	Outputs map[string]any
	Next    []string
}

// ExecutionContext exposes run-scoped capabilities to an executing node:
// read/write access to the variable store and the run's logger. It is an
// explicit capability, never ambient global state.
type ExecutionContext interface {
	RunID() string
	WorkflowID() string

	// Variable reads a run variable, consulting any enclosing branch scope
	// (loop iteration bindings, catch error bindings) before the shared store.
	Variable(name string) (any, bool)

	// SetVariable writes to the shared store. Writes to the same name from
	// concurrent branches are serialized, last write wins by completion order.
	SetVariable(name string, value any)

	// Variables returns a snapshot of the visible variable state.
	Variables() map[string]any

	// RecordRecovered appends an absorbed failure to the run's error trail so
	// the terminal result still surfaces it, tagged as recovered.
	RecordRecovered(err error)

	Logger() *slog.Logger
}

// Node is the unit of work in a workflow graph. A node fails by returning a
// typed error, never by silently producing a default.
type Node interface {
	ID() string
	Type() string
	InputPorts() []models.InputPort
	OutputPorts() []models.OutputPort
	Execute(ctx context.Context, run ExecutionContext, inputs map[string]any) (*Result, error)
}

// SubgraphRunner lets control-flow nodes drive the sub-graph hanging off one
// of their execution-out ports. RunBranch blocks until every path started
// from that port has terminated, and returns the branch's failure if any
// uncaught error occurred. The scope bindings are visible to variable reads
// inside the branch but do not leak into the shared store.
type SubgraphRunner interface {
	RunBranch(ctx context.Context, port string, scope map[string]any) error

	// HasBranch reports whether any execution edge leaves the given port.
	HasBranch(port string) bool
}

// ControlNode is implemented by control-flow constructs (fork,
// parallel-for-each, try/catch, loop) that execute sub-graphs. The engine
// invokes ExecuteControl instead of Execute for these nodes.
type ControlNode interface {
	Node
	ExecuteControl(ctx context.Context, run ExecutionContext, inputs map[string]any, sub SubgraphRunner) (*Result, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration. The
	// configuration has already been validated against Properties.
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the unique type tag for this node type.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Properties returns the ordered property schema for this node type.
	Properties() []schema.PropertySpec
}
