package fork

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/loomhq/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRun struct {
	mu        sync.Mutex
	recovered []error
}

func (f *fakeRun) RunID() string               { return "run-test" }
func (f *fakeRun) WorkflowID() string          { return "wf-test" }
func (f *fakeRun) Variable(string) (any, bool) { return nil, false }
func (f *fakeRun) SetVariable(string, any)     {}
func (f *fakeRun) Variables() map[string]any   { return nil }

func (f *fakeRun) RecordRecovered(err error) {
	f.mu.Lock()
	f.recovered = append(f.recovered, err)
	f.mu.Unlock()
}

func (f *fakeRun) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSub struct {
	branches map[string]func(ctx context.Context, scope map[string]any) error
}

func (s *fakeSub) RunBranch(ctx context.Context, port string, scope map[string]any) error {
	fn, ok := s.branches[port]
	if !ok {
		return nil
	}

	return fn(ctx, scope)
}

func (s *fakeSub) HasBranch(port string) bool {
	_, ok := s.branches[port]

	return ok
}

func TestNewForkNode(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		node, err := NewForkNode("f1", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, node.branchCount)
		assert.True(t, node.failFast)
	})

	t.Run("branch count out of range", func(t *testing.T) {
		_, err := NewForkNode("f1", map[string]any{"branch_count": int64(0)})
		require.Error(t, err)

		_, err = NewForkNode("f1", map[string]any{"branch_count": int64(MaxBranches + 1)})
		require.Error(t, err)
	})
}

func TestForkNode_ExecuteControl(t *testing.T) {
	t.Run("no connected branches completes immediately", func(t *testing.T) {
		node, err := NewForkNode("f1", nil)
		require.NoError(t, err)

		result, err := node.ExecuteControl(context.Background(), &fakeRun{}, nil, &fakeSub{})
		require.NoError(t, err)

		assert.Equal(t, 0, result.Outputs["branches"])
		assert.Equal(t, []string{models.ExecCompletedPort}, result.Next)
	})

	t.Run("all branches run", func(t *testing.T) {
		node, err := NewForkNode("f1", map[string]any{"branch_count": int64(3)})
		require.NoError(t, err)

		var (
			mu  sync.Mutex
			ran []string
		)

		record := func(port string) func(context.Context, map[string]any) error {
			return func(context.Context, map[string]any) error {
				mu.Lock()
				ran = append(ran, port)
				mu.Unlock()

				return nil
			}
		}

		sub := &fakeSub{branches: map[string]func(context.Context, map[string]any) error{
			BranchPort(0): record(BranchPort(0)),
			BranchPort(2): record(BranchPort(2)),
		}}

		result, err := node.ExecuteControl(context.Background(), &fakeRun{}, nil, sub)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Outputs["branches"])
		assert.ElementsMatch(t, []string{BranchPort(0), BranchPort(2)}, ran)
	})

	t.Run("fail fast reports the branch failure", func(t *testing.T) {
		node, err := NewForkNode("f1", map[string]any{"fail_fast": true})
		require.NoError(t, err)

		boom := errors.New("boom")

		sub := &fakeSub{branches: map[string]func(context.Context, map[string]any) error{
			BranchPort(0): func(context.Context, map[string]any) error { return boom },
			BranchPort(1): func(ctx context.Context, _ map[string]any) error {
				<-ctx.Done()

				return ctx.Err()
			},
		}}

		_, err = node.ExecuteControl(context.Background(), &fakeRun{}, nil, sub)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("without fail fast extra failures are recovered", func(t *testing.T) {
		node, err := NewForkNode("f1", map[string]any{"fail_fast": false})
		require.NoError(t, err)

		sub := &fakeSub{branches: map[string]func(context.Context, map[string]any) error{
			BranchPort(0): func(context.Context, map[string]any) error { return errors.New("first") },
			BranchPort(1): func(context.Context, map[string]any) error { return errors.New("second") },
		}}

		run := &fakeRun{}

		_, err = node.ExecuteControl(context.Background(), run, nil, sub)
		require.Error(t, err)
		assert.Len(t, run.recovered, 1, "the non-first failure lands on the trail")
	})
}

func TestForkNode_OutputPorts(t *testing.T) {
	node, err := NewForkNode("f1", map[string]any{"branch_count": int64(3)})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, p := range node.OutputPorts() {
		names = append(names, p.Name)
	}

	assert.Contains(t, names, BranchPort(0))
	assert.Contains(t, names, BranchPort(2))
	assert.Contains(t, names, models.ExecCompletedPort)
}
