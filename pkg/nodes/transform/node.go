// Package transform provides data transformation node implementation for
// workflow graph execution.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const (
	InputPortInput   = "input"
	OutputPortOutput = "output"
)

// TransformNode applies an expression template to its input value and emits
// the result on its output port. Structured template output is parsed back
// into lists and mappings.
type TransformNode struct {
	id         string
	expression string
}

// NewTransformNode creates a new transform node.
func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &TransformNode{id: id, expression: expression}, nil
}

func (n *TransformNode) ID() string {
	return n.id
}

func (n *TransformNode) Type() string {
	return "transform"
}

func (n *TransformNode) Execute(_ context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	data := map[string]any{
		"input": inputs[InputPortInput],
		"vars":  run.Variables(),
	}

	output, err := template.Render(n.expression, data)
	if err != nil {
		return nil, fmt.Errorf("failed to apply transform expression: %w", err)
	}

	return &protocol.Result{
		Outputs: map[string]any{OutputPortOutput: output},
		Next:    []string{models.ExecOutPort},
	}, nil
}

func (n *TransformNode) InputPorts() []models.InputPort {
	input := models.DataIn(n.id, InputPortInput, models.KindAny)
	input.Description = "Value bound as {{.input}} in the expression"

	return []models.InputPort{models.ExecIn(n.id), input}
}

func (n *TransformNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecOutPort),
		models.DataOut(n.id, OutputPortOutput, models.KindAny),
	}
}
