package engine

import (
	"context"
	"errors"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// retryPolicy is the engine-enforced execution policy declared on a node:
// timeout per attempt, retry count and interval between attempts.
type retryPolicy struct {
	timeout  time.Duration
	retries  int
	interval time.Duration
}

func (r *run) policyFor(spec *models.WorkflowNode) retryPolicy {
	policy := retryPolicy{
		retries: r.graph.Workflow.Settings.RetryCount,
	}

	if spec == nil {
		return policy
	}

	if v, ok := configFloat(spec.Config, models.PropTimeout); ok && v > 0 {
		policy.timeout = time.Duration(v * float64(time.Second))
	}

	if v, ok := configFloat(spec.Config, models.PropRetryCount); ok && v >= 0 {
		policy.retries = int(v)
	}

	if v, ok := configFloat(spec.Config, models.PropRetryInterval); ok && v > 0 {
		policy.interval = time.Duration(v * float64(time.Second))
	}

	return policy
}

// invokeWithRetry repeats the failing node's execute with the same resolved
// inputs, waiting the declared interval between attempts. Upstream nodes are
// never re-run. Cancellation is not retried.
func (r *run) invokeWithRetry(
	ctx context.Context,
	f *frame,
	node protocol.Node,
	spec *models.WorkflowNode,
	inputs map[string]any,
	policy retryPolicy,
) (*protocol.Result, error) {
	attempts := policy.retries + 1

	var lastErr *NodeExecutionError

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := r.invokeOnce(ctx, f, node, inputs, policy.timeout)
		if err == nil {
			return res, nil
		}

		if ctx.Err() != nil || IsCancelled(err) {
			return nil, cancelledError(err)
		}

		lastErr = &NodeExecutionError{
			NodeID:   node.ID(),
			NodeType: node.Type(),
			Message:  err.Error(),
			Attempts: attempt,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || IsTimeout(err),
		}

		if attempt == attempts {
			break
		}

		// Absorbed by the retry policy; keep it on the trail as recovered.
		r.recordError(lastErr, true)
		r.logger.Warn("node failed, retrying",
			"node_id", node.ID(),
			"attempt", attempt,
			"retry_in", policy.interval,
			"error", err)

		if policy.interval > 0 {
			select {
			case <-time.After(policy.interval):
			case <-ctx.Done():
				return nil, cancelledError(ctx.Err())
			}
		}
	}

	return nil, lastErr
}

func (r *run) invokeOnce(
	ctx context.Context,
	f *frame,
	node protocol.Node,
	inputs map[string]any,
	timeout time.Duration,
) (*protocol.Result, error) {
	attemptCtx := ctx

	if timeout > 0 {
		var cancel context.CancelFunc

		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ec := &runContext{run: r, frame: f}

	if control, ok := node.(protocol.ControlNode); ok {
		// Control nodes hold no worker-pool slot; the leaf executions inside
		// their branches acquire their own.
		res, err := control.ExecuteControl(attemptCtx, ec, inputs, &branchRunner{
			run:    r,
			frame:  f,
			nodeID: node.ID(),
		})

		return res, attemptErr(attemptCtx, err)
	}

	if r.engine.pool != nil {
		if err := r.engine.pool.Acquire(attemptCtx, 1); err != nil {
			return nil, attemptErr(attemptCtx, err)
		}
		defer r.engine.pool.Release(1)
	}

	res, err := node.Execute(attemptCtx, ec, inputs)

	return res, attemptErr(attemptCtx, err)
}

// attemptErr maps a deadline on the attempt context onto the timeout error so
// retry and catch treat it like any node failure.
func attemptErr(attemptCtx context.Context, err error) error {
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	return err
}

func cancelledError(cause error) error {
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ErrCancelled
	}

	return errors.Join(ErrCancelled, cause)
}
