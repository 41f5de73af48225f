package workflow

import (
	"context"
	"fmt"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/schema"
)

// Compile resolves a workflow into an executable graph: structure checked,
// every node type resolved through the registry, property values validated
// against each type's schema, node instances created and edges verified
// against the instantiated ports. A compiled graph is immutable; runs only
// read it.
func Compile(ctx context.Context, wf *models.Workflow, reg *registry.Registry) (*engine.Graph, error) {
	if err := validateStructure(wf); err != nil {
		return nil, err
	}

	nodes := make(map[string]protocol.Node, len(wf.Nodes))

	for _, spec := range wf.Nodes {
		node, err := instantiate(ctx, spec, reg)
		if err != nil {
			return nil, err
		}

		nodes[spec.ID] = node
	}

	if err := validateEdges(wf, nodes); err != nil {
		return nil, err
	}

	return engine.NewGraph(wf, nodes), nil
}

// Validate checks a workflow without keeping the compiled graph.
func Validate(ctx context.Context, wf *models.Workflow, reg *registry.Registry) error {
	_, err := Compile(ctx, wf, reg)

	return err
}

func instantiate(ctx context.Context, spec *models.WorkflowNode, reg *registry.Registry) (protocol.Node, error) {
	factory, err := reg.NodeFactory(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", spec.ID, err)
	}

	config := schema.ApplyDefaults(factory.Properties(), spec.Config)

	if err := schema.Validate(spec.ID, factory.Properties(), config); err != nil {
		return nil, err
	}

	node, err := factory.Create(ctx, spec.ID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s (%s): %w", spec.ID, spec.Type, err)
	}

	return node, nil
}
