// Package models defines port-based workflow models for node connections.
package models

// PortKind distinguishes control-flow ports from data ports.
type PortKind string

const (
	// PortKindExec marks a control-flow port. Exec ports never carry a value;
	// activating an exec-out port selects which node runs next.
	PortKindExec PortKind = "exec"
	// PortKindData marks a typed value port.
	PortKindData PortKind = "data"
)

// Port represents a connection point on a node.
type Port struct {
	ID          string   `json:"id"`      // Globally unique: "{nodeID}:{portName}"
	NodeID      string   `json:"node_id"` // Which node this port belongs to
	Name        string   `json:"name"`    // Port name (unique within node)
	Kind        PortKind `json:"kind"`
	DataKind    DataKind `json:"data_kind,omitempty"` // Only set for data ports
	Description string   `json:"description,omitempty"`
}

// InputPort extends Port with input-specific resolution properties. A data
// input is resolved from its data edge first, then from the named variable,
// then from the declared default.
type InputPort struct {
	Port

	Required bool   `json:"required,omitempty"`
	Variable string `json:"variable,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// OutputPort extends Port with output-specific properties.
type OutputPort struct {
	Port
}

// PortDirection represents the direction of flow for a port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
)

func (p InputPort) GetDirection() PortDirection {
	return PortDirectionInput
}

func (p OutputPort) GetDirection() PortDirection {
	return PortDirectionOutput
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}

// ExecIn builds the canonical execution-in port every executable node exposes.
func ExecIn(nodeID string) InputPort {
	return InputPort{Port: Port{
		ID:     MakePortID(nodeID, ExecInPort),
		NodeID: nodeID,
		Name:   ExecInPort,
		Kind:   PortKindExec,
	}}
}

// ExecOut builds a named execution-out port.
func ExecOut(nodeID, name string) OutputPort {
	return OutputPort{Port: Port{
		ID:     MakePortID(nodeID, name),
		NodeID: nodeID,
		Name:   name,
		Kind:   PortKindExec,
	}}
}

// DataIn builds a data input port.
func DataIn(nodeID, name string, kind DataKind) InputPort {
	return InputPort{Port: Port{
		ID:       MakePortID(nodeID, name),
		NodeID:   nodeID,
		Name:     name,
		Kind:     PortKindData,
		DataKind: kind,
	}}
}

// DataOut builds a data output port.
func DataOut(nodeID, name string, kind DataKind) OutputPort {
	return OutputPort{Port: Port{
		ID:       MakePortID(nodeID, name),
		NodeID:   nodeID,
		Name:     name,
		Kind:     PortKindData,
		DataKind: kind,
	}}
}

// Well-known port names shared across node types.
const (
	ExecInPort        = "exec_in"
	ExecOutPort       = "exec_out"
	ExecErrorPort     = "error"
	ExecCompletedPort = "completed"
	ExecBodyPort      = "body"
)
