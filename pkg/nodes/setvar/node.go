// Package setvar provides the set-variable node that writes a value into the
// run's shared variable store.
package setvar

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const InputPortValue = "value"

// SetVariableNode writes a value into the shared store. Concurrent writers to
// the same name are serialized by the store; last write wins.
type SetVariableNode struct {
	id    string
	name  string
	value any
}

// NewSetVariableNode creates a new set-variable node.
func NewSetVariableNode(id string, config map[string]any) (*SetVariableNode, error) {
	name, ok := config["name"].(string)
	if !ok || name == "" {
		return nil, errors.New("missing required field 'name'")
	}

	return &SetVariableNode{
		id:    id,
		name:  name,
		value: config["value"],
	}, nil
}

func (n *SetVariableNode) ID() string {
	return n.id
}

func (n *SetVariableNode) Type() string {
	return "setvar"
}

// Execute resolves the value to write: the value port if wired, otherwise the
// configured value with string templates rendered.
func (n *SetVariableNode) Execute(_ context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	value, wired := inputs[InputPortValue]
	if !wired {
		value = n.value

		if s, ok := n.value.(string); ok && template.NeedsTemplating(s) {
			rendered, err := template.RenderWithContext(s, run)
			if err != nil {
				return nil, fmt.Errorf("failed to render value template: %w", err)
			}

			value = rendered
		}
	}

	run.SetVariable(n.name, value)

	return &protocol.Result{
		Outputs: map[string]any{"name": n.name, "value": value},
		Next:    []string{models.ExecOutPort},
	}, nil
}

func (n *SetVariableNode) InputPorts() []models.InputPort {
	value := models.DataIn(n.id, InputPortValue, models.KindAny)
	value.Description = "Value to store; overrides the configured value when wired"

	return []models.InputPort{models.ExecIn(n.id), value}
}

func (n *SetVariableNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecOutPort),
		models.DataOut(n.id, "name", models.KindString),
		models.DataOut(n.id, "value", models.KindAny),
	}
}
