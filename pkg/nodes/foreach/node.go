// Package foreach provides the parallel for-each control node that runs its
// body sub-graph once per item of a list with bounded parallelism.
package foreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	InputPortItems = "items"

	// Scope bindings visible inside the body sub-graph.
	ScopeCurrentItem  = "current_item"
	ScopeCurrentIndex = "current_index"
)

// ForEachNode iterates a list, running the body sub-graph once per item. At
// most batch_size iterations run concurrently; the completed port activates
// only after every iteration has terminated.
type ForEachNode struct {
	id             string
	batchSize      int
	failFast       bool
	timeoutPerItem time.Duration
	retryOnTimeout bool
	itemRetryCount int
	itemInterval   time.Duration
}

// NewForEachNode creates a new for-each node.
func NewForEachNode(id string, config map[string]any) (*ForEachNode, error) {
	n := &ForEachNode{
		id:        id,
		batchSize: 1,
		failFast:  true,
	}

	if v, ok := engine.ConfigInt(config, "batch_size"); ok {
		if v < 1 {
			return nil, errors.New("batch_size must be at least 1")
		}

		n.batchSize = v
	}

	if v, ok := engine.ConfigBool(config, "fail_fast"); ok {
		n.failFast = v
	}

	if v, ok := engine.ConfigFloat(config, "timeout_per_item"); ok && v > 0 {
		n.timeoutPerItem = time.Duration(v * float64(time.Second))
	}

	if v, ok := engine.ConfigBool(config, "retry_on_timeout"); ok {
		n.retryOnTimeout = v
	}

	if v, ok := engine.ConfigInt(config, "item_retry_count"); ok && v > 0 {
		n.itemRetryCount = v
	}

	if v, ok := engine.ConfigFloat(config, "item_retry_interval"); ok && v > 0 {
		n.itemInterval = time.Duration(v * float64(time.Second))
	}

	return n, nil
}

func (n *ForEachNode) ID() string {
	return n.id
}

func (n *ForEachNode) Type() string {
	return "foreach"
}

func (n *ForEachNode) Execute(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	return nil, errors.New("foreach node requires control execution")
}

// ExecuteControl fans the items out over the body sub-graph. Each iteration
// sees its item and index as scoped bindings that shadow run variables of the
// same name but never leak into the shared store.
func (n *ForEachNode) ExecuteControl(
	ctx context.Context,
	run protocol.ExecutionContext,
	inputs map[string]any,
	sub protocol.SubgraphRunner,
) (*protocol.Result, error) {
	items, ok := inputs[InputPortItems].([]any)
	if !ok {
		return nil, errors.New("foreach requires a list on its items port")
	}

	results := make([]any, len(items))

	if len(items) == 0 || !sub.HasBranch(models.ExecBodyPort) {
		return &protocol.Result{
			Outputs: map[string]any{"results": results, "count": 0},
			Next:    []string{models.ExecCompletedPort},
		}, nil
	}

	run.Logger().Debug("foreach starting",
		"node_id", n.id, "items", len(items), "batch_size", n.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.batchSize)

	for i, item := range items {
		g.Go(func() error {
			err := n.runItem(gctx, run, sub, i, item)
			if err == nil {
				results[i] = map[string]any{"index": i, "status": "completed"}

				return nil
			}

			results[i] = map[string]any{"index": i, "status": "failed", "error": err.Error()}

			if n.failFast {
				return err
			}

			// Absorbed; the iteration failure stays on the trail as recovered.
			run.RecordRecovered(err)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &protocol.Result{
		Outputs: map[string]any{"results": results, "count": len(items)},
		Next:    []string{models.ExecCompletedPort},
	}, nil
}

// runItem runs the body once for one item, applying the per-item timeout and
// retry policy. A timed-out item is terminal unless retry_on_timeout is set.
func (n *ForEachNode) runItem(
	ctx context.Context,
	run protocol.ExecutionContext,
	sub protocol.SubgraphRunner,
	index int,
	item any,
) error {
	scope := map[string]any{
		ScopeCurrentItem:  item,
		ScopeCurrentIndex: index,
	}

	attempts := n.itemRetryCount + 1

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := n.runItemOnce(ctx, sub, scope)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return err
		}

		timedOut := errors.Is(err, context.DeadlineExceeded) || engine.IsTimeout(err)
		if timedOut {
			lastErr = fmt.Errorf("item %d timed out: %w", index, engine.ErrTimeout)

			if !n.retryOnTimeout {
				return lastErr
			}
		} else {
			lastErr = fmt.Errorf("item %d failed: %w", index, err)
		}

		if attempt == attempts {
			break
		}

		run.RecordRecovered(lastErr)
		run.Logger().Warn("foreach item failed, retrying",
			"node_id", n.id, "index", index, "attempt", attempt, "error", err)

		if n.itemInterval > 0 {
			select {
			case <-time.After(n.itemInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (n *ForEachNode) runItemOnce(ctx context.Context, sub protocol.SubgraphRunner, scope map[string]any) error {
	itemCtx := ctx

	if n.timeoutPerItem > 0 {
		var cancel context.CancelFunc

		itemCtx, cancel = context.WithTimeout(ctx, n.timeoutPerItem)
		defer cancel()
	}

	return sub.RunBranch(itemCtx, models.ExecBodyPort, scope)
}

func (n *ForEachNode) InputPorts() []models.InputPort {
	items := models.DataIn(n.id, InputPortItems, models.KindList)
	items.Required = true
	items.Description = "List of items to iterate over"

	return []models.InputPort{models.ExecIn(n.id), items}
}

func (n *ForEachNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecBodyPort),
		models.ExecOut(n.id, models.ExecCompletedPort),
		models.DataOut(n.id, "results", models.KindList),
		models.DataOut(n.id, "count", models.KindInteger),
	}
}
