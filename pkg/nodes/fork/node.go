// Package fork provides the fork control node that runs several execution
// branches concurrently and joins them.
package fork

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	MaxBranches = 16

	branchPortPrefix = "branch_"
)

// ForkNode runs the sub-graphs attached to its branch ports concurrently and
// activates its completed port only after every branch has terminated.
type ForkNode struct {
	id          string
	branchCount int
	failFast    bool
}

// NewForkNode creates a new fork node.
func NewForkNode(id string, config map[string]any) (*ForkNode, error) {
	branchCount := 2
	if v, ok := engine.ConfigInt(config, "branch_count"); ok {
		branchCount = v
	}

	if branchCount < 1 || branchCount > MaxBranches {
		return nil, fmt.Errorf("branch_count must be between 1 and %d", MaxBranches)
	}

	failFast := true
	if v, ok := engine.ConfigBool(config, "fail_fast"); ok {
		failFast = v
	}

	return &ForkNode{
		id:          id,
		branchCount: branchCount,
		failFast:    failFast,
	}, nil
}

func (n *ForkNode) ID() string {
	return n.id
}

func (n *ForkNode) Type() string {
	return "fork"
}

// BranchPort returns the execution-out port name for branch i.
func BranchPort(i int) string {
	return fmt.Sprintf("%s%d", branchPortPrefix, i)
}

// Execute is never called for control nodes; the engine dispatches to
// ExecuteControl.
func (n *ForkNode) Execute(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	return nil, errors.New("fork node requires control execution")
}

// ExecuteControl starts every connected branch, waits for all of them, and
// then activates the completed port. With fail_fast the first branch failure
// cancels the siblings; either way a branch failure fails the fork after the
// join.
func (n *ForkNode) ExecuteControl(
	ctx context.Context,
	run protocol.ExecutionContext,
	_ map[string]any,
	sub protocol.SubgraphRunner,
) (*protocol.Result, error) {
	var ports []string

	for i := range n.branchCount {
		if port := BranchPort(i); sub.HasBranch(port) {
			ports = append(ports, port)
		}
	}

	if len(ports) == 0 {
		return &protocol.Result{
			Outputs: map[string]any{"branches": 0},
			Next:    []string{models.ExecCompletedPort},
		}, nil
	}

	run.Logger().Debug("fork starting branches", "node_id", n.id, "branches", len(ports))

	var err error
	if n.failFast {
		err = n.runFailFast(ctx, ports, sub)
	} else {
		err = n.runAll(ctx, run, ports, sub)
	}

	if err != nil {
		return nil, err
	}

	return &protocol.Result{
		Outputs: map[string]any{"branches": len(ports)},
		Next:    []string{models.ExecCompletedPort},
	}, nil
}

// runFailFast cancels sibling branches as soon as one fails. The errgroup
// still waits for every branch to observe the cancellation and unwind before
// the join completes, and reports the originating failure.
func (n *ForkNode) runFailFast(ctx context.Context, ports []string, sub protocol.SubgraphRunner) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, port := range ports {
		g.Go(func() error {
			return sub.RunBranch(gctx, port, nil)
		})
	}

	return g.Wait()
}

// runAll lets every branch run to completion. The first failure becomes the
// fork's error; later failures are kept on the run's error trail.
func (n *ForkNode) runAll(ctx context.Context, run protocol.ExecutionContext, ports []string, sub protocol.SubgraphRunner) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, port := range ports {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := sub.RunBranch(ctx, port, nil); err != nil {
				mu.Lock()
				defer mu.Unlock()

				if firstErr == nil {
					firstErr = err
				} else {
					run.RecordRecovered(err)
				}
			}
		}()
	}

	wg.Wait()

	return firstErr
}

func (n *ForkNode) InputPorts() []models.InputPort {
	return []models.InputPort{models.ExecIn(n.id)}
}

func (n *ForkNode) OutputPorts() []models.OutputPort {
	ports := make([]models.OutputPort, 0, n.branchCount+2)

	for i := range n.branchCount {
		ports = append(ports, models.ExecOut(n.id, BranchPort(i)))
	}

	ports = append(ports,
		models.ExecOut(n.id, models.ExecCompletedPort),
		models.DataOut(n.id, "branches", models.KindInteger),
	)

	return ports
}
