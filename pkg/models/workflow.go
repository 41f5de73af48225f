package models

// ConnectionKind distinguishes execution edges from data edges.
type ConnectionKind string

const (
	ConnectionExec ConnectionKind = "exec"
	ConnectionData ConnectionKind = "data"
)

// Connection connects two ports directly (fully normalized). Execution edges
// connect an exec-out to an exec-in and never carry a value; data edges
// connect a data-out to a data-in of a compatible kind.
type Connection struct {
	ID         string         `json:"id"`
	Kind       ConnectionKind `json:"kind"        validate:"required"`
	SourcePort string         `json:"source_port" validate:"required"` // "{node_id}:{port_name}"
	TargetPort string         `json:"target_port" validate:"required"` // "{node_id}:{port_name}"
}

// TriggerSpec declares a trigger bound to a workflow. Triggers live outside
// the graph: they start runs but are not nodes.
type TriggerSpec struct {
	ID      string         `json:"id"   validate:"required"`
	Type    string         `json:"type" validate:"required"`
	Config  map[string]any `json:"properties,omitempty"`
	Enabled bool           `json:"enabled"`
}

// Variable declares a run-scoped variable with its kind and default value.
type Variable struct {
	Kind    DataKind `json:"kind"`
	Default any      `json:"default,omitempty"`
}

// Settings holds run-wide execution policy.
type Settings struct {
	StartNode   string  `json:"start_node"    validate:"required"`
	StopOnError bool    `json:"stop_on_error,omitempty"`
	Timeout     float64 `json:"timeout,omitempty"`     // overall run timeout, seconds
	RetryCount  int     `json:"retry_count,omitempty"` // default per-node retry count
}

// Metadata describes the workflow document.
type Metadata struct {
	Name          string   `json:"name"           validate:"required"`
	Version       string   `json:"version,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	SchemaVersion string   `json:"schema_version"`
}

// Workflow represents a loaded node-based workflow graph: nodes, execution
// edges, data edges and the declared variable table. Graphs may contain
// execution cycles (loop constructs); data edges must be acyclic along the
// effective evaluation order.
type Workflow struct {
	ID          string               `json:"id"`
	Metadata    Metadata             `json:"metadata"`
	Nodes       []*WorkflowNode      `json:"nodes"       validate:"required,min=1"`
	Connections []*Connection        `json:"connections"`
	Triggers    []*TriggerSpec       `json:"triggers,omitempty"`
	Variables   map[string]*Variable `json:"variables,omitempty"`
	Settings    Settings             `json:"settings"`
}

// NodeByID returns the node with the given ID, if present.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}
