package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubNode is a scriptable protocol.Node for engine tests.
type stubNode struct {
	id      string
	inputs  []models.InputPort
	outputs []models.OutputPort
	execute func(ctx context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error)
}

func (n *stubNode) ID() string   { return n.id }
func (n *stubNode) Type() string { return "stub" }

func (n *stubNode) InputPorts() []models.InputPort {
	return append([]models.InputPort{models.ExecIn(n.id)}, n.inputs...)
}

func (n *stubNode) OutputPorts() []models.OutputPort {
	return append([]models.OutputPort{models.ExecOut(n.id, models.ExecOutPort)}, n.outputs...)
}

func (n *stubNode) Execute(ctx context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	if n.execute == nil {
		return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
	}

	return n.execute(ctx, run, inputs)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func execConn(from, to string) *models.Connection {
	return &models.Connection{
		ID:         from + "->" + to,
		Kind:       models.ConnectionExec,
		SourcePort: models.MakePortID(from, models.ExecOutPort),
		TargetPort: models.MakePortID(to, models.ExecInPort),
	}
}

func dataConn(fromNode, fromPort, toNode, toPort string) *models.Connection {
	return &models.Connection{
		ID:         fromNode + ":" + fromPort + "->" + toNode + ":" + toPort,
		Kind:       models.ConnectionData,
		SourcePort: models.MakePortID(fromNode, fromPort),
		TargetPort: models.MakePortID(toNode, toPort),
	}
}

func buildGraph(t *testing.T, start string, nodes []protocol.Node, conns []*models.Connection, mutate ...func(*models.Workflow)) *Graph {
	t.Helper()

	wf := &models.Workflow{
		ID:       "wf-test",
		Metadata: models.Metadata{Name: "test"},
		Settings: models.Settings{StartNode: start},
	}

	nodeMap := make(map[string]protocol.Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID()] = n
		wf.Nodes = append(wf.Nodes, &models.WorkflowNode{ID: n.ID(), Type: n.Type(), Enabled: true})
	}

	wf.Connections = conns

	for _, m := range mutate {
		m(wf)
	}

	return NewGraph(wf, nodeMap)
}

func TestRun_SequentialOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)

	record := func(id string) *stubNode {
		return &stubNode{
			id: id,
			execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()

				return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
			},
		}
	}

	graph := buildGraph(t, "a",
		[]protocol.Node{record("a"), record("b"), record("c")},
		[]*models.Connection{execConn("a", "b"), execConn("b", "c")},
	)

	eng := New(testLogger())

	result, err := eng.Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, result.NodesExecuted)
	assert.Empty(t, result.Errors)
}

func TestRun_DataEdgePullsProducer(t *testing.T) {
	var producerRuns int

	producer := &stubNode{
		id:      "producer",
		outputs: []models.OutputPort{models.DataOut("producer", "value", models.KindInteger)},
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			producerRuns++

			return &protocol.Result{Outputs: map[string]any{"value": int64(42)}}, nil
		},
	}

	var seen any

	consumer := &stubNode{
		id:     "consumer",
		inputs: []models.InputPort{models.DataIn("consumer", "in", models.KindInteger)},
		execute: func(_ context.Context, _ protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
			seen = inputs["in"]

			return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
		},
	}

	graph := buildGraph(t, "consumer",
		[]protocol.Node{producer, consumer},
		[]*models.Connection{dataConn("producer", "value", "consumer", "in")},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, int64(42), seen)
	assert.Equal(t, 1, producerRuns)
}

func TestRun_DataEdgeCachedWithinFrame(t *testing.T) {
	var producerRuns int

	producer := &stubNode{
		id:      "producer",
		outputs: []models.OutputPort{models.DataOut("producer", "value", models.KindString)},
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			producerRuns++

			return &protocol.Result{Outputs: map[string]any{"value": "v"}}, nil
		},
	}

	consumer := func(id string) *stubNode {
		return &stubNode{
			id:     id,
			inputs: []models.InputPort{models.DataIn(id, "in", models.KindString)},
		}
	}

	graph := buildGraph(t, "c1",
		[]protocol.Node{producer, consumer("c1"), consumer("c2")},
		[]*models.Connection{
			execConn("c1", "c2"),
			dataConn("producer", "value", "c1", "in"),
			dataConn("producer", "value", "c2", "in"),
		},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, producerRuns, "second consumer must reuse the cached output")
}

func TestRun_TypeMismatchFailsRun(t *testing.T) {
	producer := &stubNode{
		id:      "producer",
		outputs: []models.OutputPort{models.DataOut("producer", "value", models.KindAny)},
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			return &protocol.Result{Outputs: map[string]any{"value": "not-a-number"}}, nil
		},
	}

	consumer := &stubNode{
		id:     "consumer",
		inputs: []models.InputPort{models.DataIn("consumer", "in", models.KindInteger)},
	}

	graph := buildGraph(t, "consumer",
		[]protocol.Node{producer, consumer},
		[]*models.Connection{dataConn("producer", "value", "consumer", "in")},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, ErrorKindTypeMismatch, result.Errors[len(result.Errors)-1].Kind)
	assert.Equal(t, "consumer", result.Errors[len(result.Errors)-1].NodeID)
}

func TestRun_RequiredInputMissing(t *testing.T) {
	in := models.DataIn("consumer", "in", models.KindString)
	in.Required = true

	consumer := &stubNode{id: "consumer", inputs: []models.InputPort{in}}

	graph := buildGraph(t, "consumer", []protocol.Node{consumer}, nil)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
}

func TestRun_DataCycleDetected(t *testing.T) {
	a := &stubNode{
		id:      "a",
		inputs:  []models.InputPort{models.DataIn("a", "in", models.KindAny)},
		outputs: []models.OutputPort{models.DataOut("a", "out", models.KindAny)},
	}
	b := &stubNode{
		id:      "b",
		inputs:  []models.InputPort{models.DataIn("b", "in", models.KindAny)},
		outputs: []models.OutputPort{models.DataOut("b", "out", models.KindAny)},
	}

	graph := buildGraph(t, "a",
		[]protocol.Node{a, b},
		[]*models.Connection{
			dataConn("b", "out", "a", "in"),
			dataConn("a", "out", "b", "in"),
		},
	)

	done := make(chan *Result, 1)

	go func() {
		result, _ := New(testLogger()).Run(context.Background(), graph, nil)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, StatusFailed, result.Status)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[len(result.Errors)-1].Message, "cycle")
	case <-time.After(5 * time.Second):
		t.Fatal("cycle detection deadlocked")
	}
}

func TestRun_VariableResolution(t *testing.T) {
	fromVar := models.DataIn("consumer", "greeting", models.KindString)
	fromVar.Variable = "greeting"

	withDefault := models.DataIn("consumer", "count", models.KindInteger)
	withDefault.Default = int64(7)

	var inputs map[string]any

	consumer := &stubNode{
		id:     "consumer",
		inputs: []models.InputPort{fromVar, withDefault},
		execute: func(_ context.Context, _ protocol.ExecutionContext, in map[string]any) (*protocol.Result, error) {
			inputs = in

			return &protocol.Result{}, nil
		},
	}

	graph := buildGraph(t, "consumer", []protocol.Node{consumer}, nil)

	result, err := New(testLogger()).Run(context.Background(), graph, map[string]any{"greeting": "hello"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "hello", inputs["greeting"])
	assert.Equal(t, int64(7), inputs["count"], "declared default applies when nothing else resolves")
}

func TestRun_FanOutJoinsAllPaths(t *testing.T) {
	var (
		mu  sync.Mutex
		ran []string
	)

	record := func(id string) *stubNode {
		return &stubNode{
			id: id,
			execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
				mu.Lock()
				ran = append(ran, id)
				mu.Unlock()

				return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
			},
		}
	}

	graph := buildGraph(t, "start",
		[]protocol.Node{record("start"), record("left"), record("right"), record("after")},
		[]*models.Connection{
			execConn("start", "left"),
			execConn("start", "right"),
			execConn("left", "after"),
		},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.ElementsMatch(t, []string{"start", "left", "right", "after"}, ran)
}

func TestRun_DisabledNodeSkipped(t *testing.T) {
	var ran []string

	record := func(id string) *stubNode {
		return &stubNode{
			id: id,
			execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
				ran = append(ran, id)

				return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
			},
		}
	}

	graph := buildGraph(t, "a",
		[]protocol.Node{record("a"), record("b"), record("c")},
		[]*models.Connection{execConn("a", "b"), execConn("b", "c")},
		func(wf *models.Workflow) {
			n, ok := wf.NodeByID("b")
			require.True(t, ok)
			n.Enabled = false
		},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"a", "c"}, ran, "disabled node is skipped, its exec path continues")
}

func TestRun_SetVariableVisibleDownstream(t *testing.T) {
	writer := &stubNode{
		id: "writer",
		execute: func(_ context.Context, run protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			run.SetVariable("counter", int64(5))

			return &protocol.Result{Next: []string{models.ExecOutPort}}, nil
		},
	}

	var read any

	reader := &stubNode{
		id: "reader",
		execute: func(_ context.Context, run protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			read, _ = run.Variable("counter")

			return &protocol.Result{}, nil
		},
	}

	graph := buildGraph(t, "writer",
		[]protocol.Node{writer, reader},
		[]*models.Connection{execConn("writer", "reader")},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, int64(5), read)
	assert.Equal(t, int64(5), result.Variables["counter"])
}

func TestEngine_Cancel(t *testing.T) {
	started := make(chan struct{})

	blocker := &stubNode{
		id: "blocker",
		execute: func(ctx context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			close(started)
			<-ctx.Done()

			return nil, ctx.Err()
		},
	}

	graph := buildGraph(t, "blocker", []protocol.Node{blocker}, nil)

	eng := New(testLogger())

	handle, err := eng.Start(context.Background(), graph, nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, eng.Cancel(handle.ID()))

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, result.Status)
}

func TestEngine_CancelUnknownRun(t *testing.T) {
	eng := New(testLogger())

	err := eng.Cancel("run-missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestEngine_RunTimeout(t *testing.T) {
	blocker := &stubNode{
		id: "blocker",
		execute: func(ctx context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			<-ctx.Done()

			return nil, ctx.Err()
		},
	}

	graph := buildGraph(t, "blocker", []protocol.Node{blocker}, nil,
		func(wf *models.Workflow) { wf.Settings.Timeout = 0.05 })

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, result.Status)
}

func TestEngine_GetAndStatus(t *testing.T) {
	graph := buildGraph(t, "n", []protocol.Node{&stubNode{id: "n"}}, nil)

	eng := New(testLogger())

	handle, err := eng.Start(context.Background(), graph, nil)
	require.NoError(t, err)

	got, ok := eng.Get(handle.ID())
	require.True(t, ok)
	assert.Equal(t, handle.ID(), got.ID())

	_, err = eng.Run(context.Background(), graph, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Status.Terminal())

	status, err := eng.Status(handle.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestSeedVariables(t *testing.T) {
	wf := &models.Workflow{
		Variables: map[string]*models.Variable{
			"retries": {Kind: models.KindInteger, Default: int64(3)},
			"name":    {Kind: models.KindString},
		},
	}

	t.Run("defaults applied", func(t *testing.T) {
		out, err := seedVariables(wf, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), out["retries"])
	})

	t.Run("initial values coerced to declared kind", func(t *testing.T) {
		out, err := seedVariables(wf, map[string]any{"retries": float64(5), "extra": true})
		require.NoError(t, err)
		assert.Equal(t, int64(5), out["retries"])
		assert.Equal(t, true, out["extra"], "undeclared variables pass through")
	})

	t.Run("incompatible initial value rejected", func(t *testing.T) {
		_, err := seedVariables(wf, map[string]any{"retries": "lots"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestRun_NodeErrorStopsPath(t *testing.T) {
	boom := errors.New("boom")

	failing := &stubNode{
		id: "failing",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			return nil, boom
		},
	}

	var afterRan bool

	after := &stubNode{
		id: "after",
		execute: func(_ context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
			afterRan = true

			return &protocol.Result{}, nil
		},
	}

	graph := buildGraph(t, "failing",
		[]protocol.Node{failing, after},
		[]*models.Connection{execConn("failing", "after")},
	)

	result, err := New(testLogger()).Run(context.Background(), graph, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.False(t, afterRan)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "failing", result.Errors[len(result.Errors)-1].NodeID)
	assert.False(t, result.Errors[len(result.Errors)-1].Recovered)
}

func TestRun_SequentialGraphIsDeterministic(t *testing.T) {
	build := func(order *[]string) *Graph {
		record := func(id string, fn func(run protocol.ExecutionContext, inputs map[string]any) map[string]any) *stubNode {
			return &stubNode{
				id:      id,
				outputs: []models.OutputPort{models.DataOut(id, "value", models.KindAny)},
				execute: func(_ context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
					*order = append(*order, id)

					var outputs map[string]any
					if fn != nil {
						outputs = fn(run, inputs)
					}

					return &protocol.Result{Outputs: outputs, Next: []string{models.ExecOutPort}}, nil
				},
			}
		}

		double := record("double", func(run protocol.ExecutionContext, _ map[string]any) map[string]any {
			seed, _ := run.Variable("seed")

			return map[string]any{"value": seed.(int64) * 2}
		})

		store := record("store", func(run protocol.ExecutionContext, inputs map[string]any) map[string]any {
			run.SetVariable("result", inputs["in"])

			return nil
		})
		store.inputs = []models.InputPort{models.DataIn("store", "in", models.KindAny)}

		return buildGraph(t, "double",
			[]protocol.Node{double, store},
			[]*models.Connection{
				execConn("double", "store"),
				dataConn("double", "value", "store", "in"),
			},
		)
	}

	run := func() ([]string, map[string]any) {
		var order []string

		result, err := New(testLogger()).Run(context.Background(), build(&order), map[string]any{"seed": int64(21)})
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, result.Status)

		return order, result.Variables
	}

	firstOrder, firstVars := run()
	secondOrder, secondVars := run()

	assert.Equal(t, firstOrder, secondOrder)
	assert.Equal(t, firstVars, secondVars)
	assert.Equal(t, int64(42), firstVars["result"])
}
