package workflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// ErrInvalidEdge is wrapped by every EdgeError so callers can detect the
// whole class with errors.Is.
var ErrInvalidEdge = errors.New("invalid edge")

// EdgeError reports a connection that references missing endpoints or joins
// incompatible ports.
type EdgeError struct {
	ConnectionID string
	Reason       string
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("invalid edge %s: %s", e.ConnectionID, e.Reason)
}

func (e *EdgeError) Unwrap() error {
	return ErrInvalidEdge
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validateStructure checks the decoded document's required fields and
// identifier uniqueness before any node is instantiated.
func validateStructure(wf *models.Workflow) error {
	if err := structValidator.Struct(wf); err != nil {
		return fmt.Errorf("workflow structure invalid: %w", err)
	}

	seen := make(map[string]bool, len(wf.Nodes))

	for _, n := range wf.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}

		seen[n.ID] = true
	}

	start := wf.Settings.StartNode
	if _, ok := wf.NodeByID(start); !ok {
		return fmt.Errorf("start node %q not found in graph", start)
	}

	return nil
}

// validateEdges checks every connection against the instantiated nodes'
// ports: endpoints must exist, kinds must line up (exec to exec, data to
// data) and data kinds must be compatible. A data-in port accepts at most
// one incoming data edge.
func validateEdges(wf *models.Workflow, nodes map[string]protocol.Node) error {
	dataTargets := make(map[string]bool)

	for _, conn := range wf.Connections {
		srcNode, srcPort, ok := parseEndpoint(conn.SourcePort, nodes)
		if !ok {
			return &EdgeError{ConnectionID: conn.ID, Reason: fmt.Sprintf("source %q does not exist", conn.SourcePort)}
		}

		dstNode, dstPort, ok := parseEndpoint(conn.TargetPort, nodes)
		if !ok {
			return &EdgeError{ConnectionID: conn.ID, Reason: fmt.Sprintf("target %q does not exist", conn.TargetPort)}
		}

		src, ok := findOutputPort(srcNode, srcPort)
		if !ok {
			return &EdgeError{ConnectionID: conn.ID, Reason: fmt.Sprintf("source port %q does not exist", conn.SourcePort)}
		}

		dst, ok := findInputPort(dstNode, dstPort)
		if !ok {
			return &EdgeError{ConnectionID: conn.ID, Reason: fmt.Sprintf("target port %q does not exist", conn.TargetPort)}
		}

		switch conn.Kind {
		case models.ConnectionExec:
			if src.Kind != models.PortKindExec || dst.Kind != models.PortKindExec {
				return &EdgeError{ConnectionID: conn.ID, Reason: "execution edge must join exec ports"}
			}
		case models.ConnectionData:
			if src.Kind != models.PortKindData || dst.Kind != models.PortKindData {
				return &EdgeError{ConnectionID: conn.ID, Reason: "data edge must join data ports"}
			}

			if !models.CompatibleKinds(src.DataKind, dst.DataKind) {
				return &EdgeError{
					ConnectionID: conn.ID,
					Reason:       fmt.Sprintf("data kinds incompatible: %s into %s", src.DataKind, dst.DataKind),
				}
			}

			if dataTargets[conn.TargetPort] {
				return &EdgeError{
					ConnectionID: conn.ID,
					Reason:       fmt.Sprintf("target port %q already has a data edge", conn.TargetPort),
				}
			}

			dataTargets[conn.TargetPort] = true
		default:
			return &EdgeError{ConnectionID: conn.ID, Reason: fmt.Sprintf("unknown connection kind %q", conn.Kind)}
		}
	}

	return nil
}

func parseEndpoint(portID string, nodes map[string]protocol.Node) (protocol.Node, string, bool) {
	nodeID, portName, ok := models.ParsePortID(portID)
	if !ok {
		return nil, "", false
	}

	node, ok := nodes[nodeID]
	if !ok {
		return nil, "", false
	}

	return node, portName, true
}

func findOutputPort(node protocol.Node, name string) (models.OutputPort, bool) {
	for _, p := range node.OutputPorts() {
		if p.Name == name {
			return p, true
		}
	}

	return models.OutputPort{}, false
}

func findInputPort(node protocol.Node, name string) (models.InputPort, bool) {
	for _, p := range node.InputPorts() {
		if p.Name == name {
			return p, true
		}
	}

	return models.InputPort{}, false
}
