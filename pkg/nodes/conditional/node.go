// Package conditional provides conditional branching node implementation for
// workflow graph execution.
package conditional

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const (
	OutputPortTrue  = "true"
	OutputPortFalse = "false"
	InputPortValue  = "value"
)

// ConditionalNode routes execution to its true or false port based on a
// condition template evaluated against the visible variables.
type ConditionalNode struct {
	id        string
	condition string
}

// NewConditionalNode creates a new conditional node.
func NewConditionalNode(id string, config map[string]any) (*ConditionalNode, error) {
	condition, ok := config["condition"].(string)
	if !ok || condition == "" {
		return nil, errors.New("missing required field 'condition'")
	}

	return &ConditionalNode{id: id, condition: condition}, nil
}

func (n *ConditionalNode) ID() string {
	return n.id
}

func (n *ConditionalNode) Type() string {
	return "conditional"
}

// Execute evaluates the condition. A value wired to the value port is bound
// as {{.value}} in the condition template.
func (n *ConditionalNode) Execute(_ context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	data := map[string]any{
		"vars":  run.Variables(),
		"value": inputs[InputPortValue],
	}

	rendered, err := template.Render(n.condition, data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition: %w", err)
	}

	hold := truthy(rendered)

	port := OutputPortFalse
	if hold {
		port = OutputPortTrue
	}

	return &protocol.Result{
		Outputs: map[string]any{"result": hold},
		Next:    []string{port},
	}, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "false"
	case nil:
		return false
	default:
		return true
	}
}

func (n *ConditionalNode) InputPorts() []models.InputPort {
	value := models.DataIn(n.id, InputPortValue, models.KindAny)
	value.Description = "Optional value bound as {{.value}} in the condition"

	return []models.InputPort{models.ExecIn(n.id), value}
}

func (n *ConditionalNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, OutputPortTrue),
		models.ExecOut(n.id, OutputPortFalse),
		models.DataOut(n.id, "result", models.KindBoolean),
	}
}
