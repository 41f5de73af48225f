package engine

import (
	"context"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// resolveInputs resolves every data-in port of the node about to execute:
// a data edge takes the cached produced value of the upstream node (pulling
// the upstream execution if this frame has not computed it yet), otherwise a
// named variable is read from the run's store, otherwise the declared
// default applies. Values are coerced to the port's declared kind.
func (r *run) resolveInputs(ctx context.Context, f *frame, node protocol.Node, path map[string]bool) (map[string]any, error) {
	inputs := make(map[string]any)

	for _, port := range node.InputPorts() {
		if port.Kind != models.PortKindData {
			continue
		}

		value, have, err := r.resolvePort(ctx, f, node.ID(), port, path)
		if err != nil {
			return nil, err
		}

		if !have {
			if port.Required {
				return nil, &NodeExecutionError{
					NodeID:  node.ID(),
					Message: fmt.Sprintf("no value for required input %q", port.Name),
				}
			}

			continue
		}

		coerced, ok := Coerce(value, port.DataKind)
		if !ok {
			return nil, &TypeMismatchError{
				NodeID:   node.ID(),
				Port:     port.Name,
				Expected: port.DataKind,
				Actual:   typeName(value),
			}
		}

		inputs[port.Name] = coerced
	}

	return inputs, nil
}

func (r *run) resolvePort(ctx context.Context, f *frame, nodeID string, port models.InputPort, path map[string]bool) (any, bool, error) {
	if src, ok := r.graph.DataSource(nodeID, port.Name); ok {
		outs, err := r.pullNode(ctx, f, src.NodeID, path)
		if err != nil {
			return nil, false, err
		}

		value, have := outs.Outputs[src.Port]
		if !have {
			return nil, false, &NodeExecutionError{
				NodeID:  src.NodeID,
				Message: fmt.Sprintf("produced no value on port %q", src.Port),
			}
		}

		return value, true, nil
	}

	if port.Variable != "" {
		if v, ok := f.scopeVar(port.Variable); ok {
			return v, true, nil
		}

		if v, ok := r.vars.Get(port.Variable); ok {
			return v, true, nil
		}
	}

	if port.Default != nil {
		return port.Default, true, nil
	}

	return nil, false, nil
}

// pullNode returns the node's outputs for this frame, executing it as a data
// producer if no activation has computed them yet. Pull execution does not
// follow the node's execution-out ports.
func (r *run) pullNode(ctx context.Context, f *frame, nodeID string, path map[string]bool) (*protocol.Result, error) {
	if res, ok := f.cached(nodeID); ok {
		return res, nil
	}

	return r.activateNode(ctx, f, nodeID, path)
}
