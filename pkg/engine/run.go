package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/otelhelper"
	"github.com/loomhq/loom/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// run is one invocation of the orchestrator over a graph: a work set of
// active positions, the run-scoped variable store, the resolved-value cache
// (held per frame) and the accumulating error trail.
type run struct {
	id     string
	graph  *Graph
	engine *Engine
	vars   *varStore
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	status        Status
	errs          []RunError
	nodesExecuted int
	result        *Result

	started time.Time
}

func (r *run) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

func (r *run) recordError(err error, recovered bool) {
	if err == nil {
		return
	}

	entry := RunError{
		NodeID:    FailingNode(err),
		Kind:      classify(err),
		Message:   err.Error(),
		Recovered: recovered,
		At:        time.Now().UTC(),
	}

	r.mu.Lock()
	r.errs = append(r.errs, entry)
	r.mu.Unlock()
}

// execute drives the run to a terminal state. It is invoked once, on its own
// goroutine, by Engine.Start.
func (r *run) execute(ctx context.Context) {
	defer close(r.done)

	r.setStatus(StatusRunning)
	r.started = time.Now().UTC()

	r.publish(ctx, events.RunStarted{
		BaseEvent: r.baseEvent(events.RunStartedEvent),
		RunID:     r.id,
		Variables: r.vars.Snapshot(),
	})

	runCtx, span := otelhelper.StartSpan(ctx, r.engine.tracer, "run.execute",
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.WorkflowIDKey, r.graph.Workflow.ID),
	)
	defer span.End()

	root := newFrame(nil, nil)
	err := r.runPath(runCtx, root, []Endpoint{r.graph.Start()})

	r.finish(ctx, err)
}

func (r *run) finish(ctx context.Context, err error) {
	finished := time.Now().UTC()

	var status Status

	switch {
	case err == nil:
		status = StatusCompleted
	case IsCancelled(err):
		status = StatusCancelled
	default:
		status = StatusFailed
		r.recordError(err, false)
	}

	r.mu.Lock()
	r.status = status
	r.result = &Result{
		RunID:         r.id,
		WorkflowID:    r.graph.Workflow.ID,
		Status:        status,
		Errors:        append([]RunError(nil), r.errs...),
		Variables:     r.vars.Snapshot(),
		NodesExecuted: r.nodesExecuted,
		StartedAt:     r.started,
		FinishedAt:    finished,
	}
	r.mu.Unlock()

	duration := finished.Sub(r.started)

	switch status {
	case StatusCompleted:
		r.logger.Info("run completed", "duration", duration, "nodes_executed", r.nodesExecuted)
		r.publish(ctx, events.RunCompleted{
			BaseEvent:     r.baseEvent(events.RunCompletedEvent),
			RunID:         r.id,
			Status:        string(status),
			Duration:      duration,
			NodesExecuted: r.nodesExecuted,
		})
	case StatusCancelled:
		r.logger.Info("run cancelled", "duration", duration)
		r.publish(ctx, events.RunCancelled{
			BaseEvent: r.baseEvent(events.RunCancelledEvent),
			RunID:     r.id,
			Duration:  duration,
		})
	default:
		r.logger.Error("run failed", "duration", duration, "error", err)
		r.publish(ctx, events.RunFailed{
			BaseEvent: r.baseEvent(events.RunFailedEvent),
			RunID:     r.id,
			Error:     err.Error(),
			NodeID:    FailingNode(err),
			Duration:  duration,
		})
	}
}

// runPath walks one execution path: pop a position, execute the node, push
// the positions activated by its execution-out ports. A node activating more
// than one downstream position fans out into concurrent paths; the fan-out
// is joined (wait-for-all) before this path continues.
func (r *run) runPath(ctx context.Context, f *frame, queue []Endpoint) error {
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return cancelledError(ctx.Err())
		}

		pos := queue[0]
		queue = queue[1:]

		spec, ok := r.graph.Spec(pos.NodeID)
		if !ok {
			return &NodeExecutionError{NodeID: pos.NodeID, Message: "node not found in graph"}
		}

		if !spec.Enabled {
			r.logger.Debug("node disabled, skipping", "node_id", pos.NodeID)
			queue = append(queue, r.graph.ExecTargets(pos.NodeID, models.ExecOutPort)...)

			continue
		}

		res, err := r.activateNode(ctx, f, pos.NodeID, nil)
		if err != nil {
			return err
		}

		var next []Endpoint
		for _, port := range res.Next {
			next = append(next, r.graph.ExecTargets(pos.NodeID, port)...)
		}

		if len(next) <= 1 {
			queue = append(queue, next...)

			continue
		}

		if err := r.runConcurrent(ctx, f, next); err != nil {
			return err
		}
	}

	return nil
}

// runConcurrent executes fan-out positions as concurrent paths sharing the
// caller's frame, waiting for all of them. With stop_on_error the first
// failure cancels the siblings; otherwise every path runs to completion and
// the first failure is reported after the rest are logged.
func (r *run) runConcurrent(ctx context.Context, f *frame, positions []Endpoint) error {
	if r.graph.Workflow.Settings.StopOnError {
		g, gctx := errgroup.WithContext(ctx)

		for _, pos := range positions {
			g.Go(func() error {
				return r.runPath(gctx, f, []Endpoint{pos})
			})
		}

		return g.Wait()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, pos := range positions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := r.runPath(ctx, f, []Endpoint{pos}); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				} else {
					r.recordError(err, false)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return firstErr
}

// activateNode executes a node exactly once per activation, collapsing
// concurrent activation or data-pull of the same node instance within one
// frame into a single execution whose result is shared. path carries the
// node IDs of the pull chain leading here; re-entering one is a data cycle,
// detected before the singleflight join so the chain cannot wait on itself.
func (r *run) activateNode(ctx context.Context, f *frame, nodeID string, path map[string]bool) (*protocol.Result, error) {
	if path[nodeID] {
		return nil, &NodeExecutionError{NodeID: nodeID, Message: "data dependency cycle", Err: ErrDataCycle}
	}

	v, err, _ := f.flight.Do(nodeID, func() (any, error) {
		res, err := r.executeNode(ctx, f, nodeID, path)
		if err != nil {
			return nil, err
		}

		f.store(nodeID, res)

		return res, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*protocol.Result), nil
}

func (r *run) executeNode(ctx context.Context, f *frame, nodeID string, path map[string]bool) (*protocol.Result, error) {
	node, ok := r.graph.Node(nodeID)
	if !ok {
		return nil, &NodeExecutionError{NodeID: nodeID, Message: "node not found in graph"}
	}

	spec, _ := r.graph.Spec(nodeID)

	nodeCtx, span := otelhelper.StartSpan(ctx, r.engine.tracer, "run.node",
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String(otelhelper.NodeTypeKey, node.Type()),
	)
	defer span.End()

	childPath := make(map[string]bool, len(path)+1)
	for id := range path {
		childPath[id] = true
	}

	childPath[nodeID] = true

	inputs, err := r.resolveInputs(nodeCtx, f, node, childPath)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	started := time.Now()
	res, err := r.invokeWithRetry(nodeCtx, f, node, spec, inputs, r.policyFor(spec))
	duration := time.Since(started)

	r.mu.Lock()
	r.nodesExecuted++
	r.mu.Unlock()

	if err != nil {
		otelhelper.SetError(span, err)
		r.publish(ctx, events.NodeFailed{
			BaseEvent: r.baseEvent(events.NodeFailedEvent),
			RunID:     r.id,
			NodeID:    nodeID,
			Error:     err.Error(),
			Duration:  duration,
		})

		return nil, err
	}

	if res == nil {
		res = &protocol.Result{}
	}

	r.publish(ctx, events.NodeFinished{
		BaseEvent:  r.baseEvent(events.NodeFinishedEvent),
		RunID:      r.id,
		NodeID:     nodeID,
		OutputData: res.Outputs,
		Duration:   duration,
	})

	return res, nil
}

func (r *run) baseEvent(t events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:         r.engine.generateEventID(),
		Type:       t,
		Timestamp:  time.Now().UTC(),
		WorkflowID: r.graph.Workflow.ID,
	}
}

func (r *run) publish(ctx context.Context, event eventbus.Event) {
	if r.engine.events == nil {
		return
	}

	if err := r.engine.events.Publish(context.WithoutCancel(ctx), r.graph.Workflow.ID, event); err != nil {
		r.logger.Warn("failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
