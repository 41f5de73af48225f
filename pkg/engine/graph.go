package engine

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// Endpoint identifies one side of an edge.
type Endpoint struct {
	NodeID string
	Port   string
}

// Graph is a workflow compiled for execution: every node type resolved to an
// instantiated protocol.Node, with execution and data edges indexed for
// traversal. Compilation happens once at graph load (see pkg/workflow), not
// per execution step.
type Graph struct {
	Workflow *models.Workflow

	nodes map[string]protocol.Node
	specs map[string]*models.WorkflowNode

	// execOut indexes execution edges by source port ID.
	execOut map[string][]Endpoint
	// dataIn indexes data edges by target port ID; at most one data edge
	// feeds a given data-in port.
	dataIn map[string]Endpoint
}

// NewGraph builds a compiled graph from a validated workflow and its
// instantiated nodes.
func NewGraph(wf *models.Workflow, nodes map[string]protocol.Node) *Graph {
	g := &Graph{
		Workflow: wf,
		nodes:    nodes,
		specs:    make(map[string]*models.WorkflowNode, len(wf.Nodes)),
		execOut:  make(map[string][]Endpoint),
		dataIn:   make(map[string]Endpoint),
	}

	for _, n := range wf.Nodes {
		g.specs[n.ID] = n
	}

	for _, conn := range wf.Connections {
		targetNode, targetPort, _ := models.ParsePortID(conn.TargetPort)

		switch conn.Kind {
		case models.ConnectionExec:
			g.execOut[conn.SourcePort] = append(g.execOut[conn.SourcePort], Endpoint{
				NodeID: targetNode,
				Port:   targetPort,
			})
		case models.ConnectionData:
			sourceNode, sourcePort, _ := models.ParsePortID(conn.SourcePort)
			g.dataIn[conn.TargetPort] = Endpoint{NodeID: sourceNode, Port: sourcePort}
		}
	}

	return g
}

// Node returns the instantiated node for an ID.
func (g *Graph) Node(id string) (protocol.Node, bool) {
	n, ok := g.nodes[id]

	return n, ok
}

// Spec returns the authored node definition for an ID.
func (g *Graph) Spec(id string) (*models.WorkflowNode, bool) {
	s, ok := g.specs[id]

	return s, ok
}

// ExecTargets returns the exec-in endpoints downstream of a named
// execution-out port.
func (g *Graph) ExecTargets(nodeID, port string) []Endpoint {
	return g.execOut[models.MakePortID(nodeID, port)]
}

// DataSource returns the data-out endpoint feeding a node's data-in port.
func (g *Graph) DataSource(nodeID, port string) (Endpoint, bool) {
	src, ok := g.dataIn[models.MakePortID(nodeID, port)]

	return src, ok
}

// Start returns the designated start position.
func (g *Graph) Start() Endpoint {
	return Endpoint{NodeID: g.Workflow.Settings.StartNode, Port: models.ExecInPort}
}
