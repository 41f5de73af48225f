// Package trycatch provides the try/catch control node that absorbs failures
// from its body sub-graph and routes them to a catch handler.
package trycatch

import (
	"context"
	"errors"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

const (
	PortCatch   = "catch"
	PortFinally = "finally"

	// Scope bindings visible inside the catch sub-graph.
	ScopeErrorMessage = "error_message"
	ScopeErrorNode    = "error_node"
)

// TryCatchNode runs its body sub-graph and, on failure, the catch sub-graph
// with the error bound into scope. The finally sub-graph runs in every case.
// Cancellation is never caught; it unwinds through the construct.
type TryCatchNode struct {
	id string
}

// NewTryCatchNode creates a new try/catch node.
func NewTryCatchNode(id string, _ map[string]any) (*TryCatchNode, error) {
	return &TryCatchNode{id: id}, nil
}

func (n *TryCatchNode) ID() string {
	return n.id
}

func (n *TryCatchNode) Type() string {
	return "trycatch"
}

func (n *TryCatchNode) Execute(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	return nil, errors.New("trycatch node requires control execution")
}

// ExecuteControl runs body, then catch on failure, then finally. A failure
// inside catch re-raises: the catch error propagates as this node's failure.
// A finally failure propagates only when no earlier error did.
func (n *TryCatchNode) ExecuteControl(
	ctx context.Context,
	run protocol.ExecutionContext,
	_ map[string]any,
	sub protocol.SubgraphRunner,
) (*protocol.Result, error) {
	bodyErr := sub.RunBranch(ctx, models.ExecBodyPort, nil)

	caught := false

	if bodyErr != nil {
		// Cancellation unwinds; only node failures are catchable.
		if engine.IsCancelled(bodyErr) || !sub.HasBranch(PortCatch) {
			n.runFinally(ctx, run, sub)

			return nil, bodyErr
		}

		run.RecordRecovered(bodyErr)
		run.Logger().Debug("caught body failure", "node_id", n.id, "error", bodyErr)

		scope := map[string]any{
			ScopeErrorMessage: bodyErr.Error(),
			ScopeErrorNode:    engine.FailingNode(bodyErr),
		}

		if catchErr := sub.RunBranch(ctx, PortCatch, scope); catchErr != nil {
			n.runFinally(ctx, run, sub)

			return nil, catchErr
		}

		caught = true
	}

	if err := sub.RunBranch(ctx, PortFinally, nil); err != nil {
		return nil, err
	}

	return &protocol.Result{
		Outputs: map[string]any{"caught": caught},
		Next:    []string{models.ExecCompletedPort},
	}, nil
}

// runFinally runs the finally sub-graph on an error path, where its own
// failure must not mask the primary error.
func (n *TryCatchNode) runFinally(ctx context.Context, run protocol.ExecutionContext, sub protocol.SubgraphRunner) {
	if err := sub.RunBranch(ctx, PortFinally, nil); err != nil && !engine.IsCancelled(err) {
		run.RecordRecovered(err)
		run.Logger().Warn("finally branch failed", "node_id", n.id, "error", err)
	}
}

func (n *TryCatchNode) InputPorts() []models.InputPort {
	return []models.InputPort{models.ExecIn(n.id)}
}

func (n *TryCatchNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecBodyPort),
		models.ExecOut(n.id, PortCatch),
		models.ExecOut(n.id, PortFinally),
		models.ExecOut(n.id, models.ExecCompletedPort),
		models.DataOut(n.id, "caught", models.KindBoolean),
	}
}
