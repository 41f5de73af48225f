// Package log provides logging node implementation for workflow graph
// execution.
package log

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const InputPortMessage = "message"

// LogNode writes a templated message to the run's logger.
type LogNode struct {
	id      string
	message string
	level   string
}

// NewLogNode creates a new logging node.
func NewLogNode(id string, config map[string]any) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok {
		level = lvl
	}

	return &LogNode{id: id, message: message, level: level}, nil
}

func (n *LogNode) ID() string {
	return n.id
}

func (n *LogNode) Type() string {
	return "log"
}

// Execute renders and logs the message. A value wired to the message port
// replaces the configured template.
func (n *LogNode) Execute(_ context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	message := n.message
	if v, ok := inputs[InputPortMessage]; ok {
		message = fmt.Sprintf("%v", v)
	} else {
		rendered, err := template.RenderWithContext(n.message, run)
		if err != nil {
			return nil, fmt.Errorf("failed to render log message template: %w", err)
		}

		message = fmt.Sprintf("%v", rendered)
	}

	logger := run.Logger().With("node_id", n.id)

	switch n.level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}

	return &protocol.Result{
		Outputs: map[string]any{"message": message, "level": n.level},
		Next:    []string{models.ExecOutPort},
	}, nil
}

func (n *LogNode) InputPorts() []models.InputPort {
	message := models.DataIn(n.id, InputPortMessage, models.KindAny)
	message.Description = "Optional value logged instead of the configured message template"

	return []models.InputPort{models.ExecIn(n.id), message}
}

func (n *LogNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecOutPort),
		models.DataOut(n.id, "message", models.KindString),
		models.DataOut(n.id, "level", models.KindString),
	}
}
