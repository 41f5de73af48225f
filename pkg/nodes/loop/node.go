// Package loop provides the while-style loop control node that repeats its
// body sub-graph while a condition holds.
package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const (
	DefaultMaxIterations = 1000

	// ScopeIteration binds the zero-based iteration counter inside the body.
	ScopeIteration = "loop_index"
)

// LoopNode re-evaluates its condition before each iteration and runs the body
// sub-graph while it holds. Each iteration gets a fresh resolved-value frame,
// so body nodes re-execute instead of replaying cached outputs.
type LoopNode struct {
	id            string
	condition     string
	maxIterations int
}

// NewLoopNode creates a new loop node.
func NewLoopNode(id string, config map[string]any) (*LoopNode, error) {
	condition, ok := config["condition"].(string)
	if !ok || condition == "" {
		return nil, errors.New("missing required field 'condition'")
	}

	maxIterations := DefaultMaxIterations
	if v, ok := engine.ConfigInt(config, "max_iterations"); ok {
		if v < 1 {
			return nil, errors.New("max_iterations must be at least 1")
		}

		maxIterations = v
	}

	return &LoopNode{
		id:            id,
		condition:     condition,
		maxIterations: maxIterations,
	}, nil
}

func (n *LoopNode) ID() string {
	return n.id
}

func (n *LoopNode) Type() string {
	return "loop"
}

func (n *LoopNode) Execute(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	return nil, errors.New("loop node requires control execution")
}

// ExecuteControl drives the iteration cycle. Hitting max_iterations while the
// condition still holds is a failure; a loop that cannot make progress should
// surface, not silently truncate.
func (n *LoopNode) ExecuteControl(
	ctx context.Context,
	run protocol.ExecutionContext,
	_ map[string]any,
	sub protocol.SubgraphRunner,
) (*protocol.Result, error) {
	iterations := 0

	for {
		if ctx.Err() != nil {
			return nil, engine.ErrCancelled
		}

		hold, err := template.RenderBool(n.condition, run)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate loop condition: %w", err)
		}

		if !hold {
			break
		}

		if iterations >= n.maxIterations {
			return nil, fmt.Errorf("loop exceeded max_iterations (%d)", n.maxIterations)
		}

		scope := map[string]any{ScopeIteration: iterations}

		if err := sub.RunBranch(ctx, models.ExecBodyPort, scope); err != nil {
			return nil, err
		}

		iterations++
	}

	return &protocol.Result{
		Outputs: map[string]any{"iterations": iterations},
		Next:    []string{models.ExecCompletedPort},
	}, nil
}

func (n *LoopNode) InputPorts() []models.InputPort {
	return []models.InputPort{models.ExecIn(n.id)}
}

func (n *LoopNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecBodyPort),
		models.ExecOut(n.id, models.ExecCompletedPort),
		models.DataOut(n.id, "iterations", models.KindInteger),
	}
}
