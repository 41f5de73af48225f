package engine

import (
	"context"
)

// branchRunner is the SubgraphRunner handed to control-flow nodes. Each
// branch runs in a child frame, so loop re-entry and per-item iterations get
// a fresh resolved-value cache while still seeing ancestor outputs.
type branchRunner struct {
	run    *run
	frame  *frame
	nodeID string
}

func (b *branchRunner) RunBranch(ctx context.Context, port string, scope map[string]any) error {
	starts := b.run.graph.ExecTargets(b.nodeID, port)
	if len(starts) == 0 {
		return nil
	}

	child := newFrame(b.frame, scope)

	if len(starts) == 1 {
		return b.run.runPath(ctx, child, starts)
	}

	return b.run.runConcurrent(ctx, child, starts)
}

func (b *branchRunner) HasBranch(port string) bool {
	return len(b.run.graph.ExecTargets(b.nodeID, port)) > 0
}
