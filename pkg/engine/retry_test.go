package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withNodeConfig(id string, config map[string]any) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		if n, ok := wf.NodeByID(id); ok {
			n.Config = config
		}
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var attempts int

	flaky := &stubNode{
		id: "flaky",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}

			return &protocol.Result{}, nil
		},
	}

	graph := buildGraph(t, "flaky", []protocol.Node{flaky}, nil,
		withNodeConfig("flaky", map[string]any{models.PropRetryCount: int64(2)}))

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 3, attempts)

	// Both absorbed failures stay on the trail, tagged recovered.
	require.Len(t, result.Errors, 2)

	for _, e := range result.Errors {
		assert.True(t, e.Recovered)
		assert.Equal(t, "flaky", e.NodeID)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	var attempts int

	failing := &stubNode{
		id: "failing",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			attempts++

			return nil, errors.New("permanent")
		},
	}

	graph := buildGraph(t, "failing", []protocol.Node{failing}, nil,
		withNodeConfig("failing", map[string]any{models.PropRetryCount: int64(1)}))

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 2, attempts)

	last := result.Errors[len(result.Errors)-1]
	assert.False(t, last.Recovered)
	assert.Equal(t, ErrorKindExecution, last.Kind)
}

func TestRetry_IntervalBetweenAttempts(t *testing.T) {
	var attempts int

	failing := &stubNode{
		id: "failing",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			attempts++

			return nil, errors.New("nope")
		},
	}

	graph := buildGraph(t, "failing", []protocol.Node{failing}, nil,
		withNodeConfig("failing", map[string]any{
			models.PropRetryCount:    int64(2),
			models.PropRetryInterval: 0.05,
		}))

	started := time.Now()

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, time.Since(started), 100*time.Millisecond)
}

func TestRetry_NodeTimeout(t *testing.T) {
	slow := &stubNode{
		id: "slow",
		execute: func(ctx context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			select {
			case <-time.After(2 * time.Second):
				return &protocol.Result{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}

	graph := buildGraph(t, "slow", []protocol.Node{slow}, nil,
		withNodeConfig("slow", map[string]any{models.PropTimeout: 0.05}))

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)

	last := result.Errors[len(result.Errors)-1]
	assert.Equal(t, ErrorKindTimeout, last.Kind)
}

func TestRetry_CancellationNotRetried(t *testing.T) {
	var attempts int

	node := &stubNode{
		id: "node",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			attempts++

			return nil, ErrCancelled
		},
	}

	graph := buildGraph(t, "node", []protocol.Node{node}, nil,
		withNodeConfig("node", map[string]any{models.PropRetryCount: int64(5)}))

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, 1, attempts)
}

func TestRetry_WorkflowDefaultRetryCount(t *testing.T) {
	var attempts int

	failing := &stubNode{
		id: "failing",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			attempts++

			return nil, errors.New("nope")
		},
	}

	graph := buildGraph(t, "failing", []protocol.Node{failing}, nil,
		func(wf *models.Workflow) { wf.Settings.RetryCount = 1 })

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 2, attempts, "run-level retry count applies when the node declares none")
}

func TestPolicyFor(t *testing.T) {
	r := &run{graph: &Graph{Workflow: &models.Workflow{Settings: models.Settings{RetryCount: 2}}}}

	t.Run("nil spec falls back to run settings", func(t *testing.T) {
		policy := r.policyFor(nil)
		assert.Equal(t, 2, policy.retries)
		assert.Zero(t, policy.timeout)
	})

	t.Run("node config overrides", func(t *testing.T) {
		policy := r.policyFor(&models.WorkflowNode{Config: map[string]any{
			models.PropTimeout:       1.5,
			models.PropRetryCount:    int64(0),
			models.PropRetryInterval: 0.25,
		}})

		assert.Equal(t, 1500*time.Millisecond, policy.timeout)
		assert.Equal(t, 0, policy.retries)
		assert.Equal(t, 250*time.Millisecond, policy.interval)
	})
}
