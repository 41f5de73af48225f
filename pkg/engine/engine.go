package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/models"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
)

// ErrRunNotFound is returned when a run handle lookup fails.
var ErrRunNotFound = errors.New("run not found")

// DefaultWorkerPoolSize bounds concurrent node executions across all runs
// owned by one engine.
const DefaultWorkerPoolSize = 32

// Engine owns the process-wide worker pool and tracks the runs started
// through it. One engine serves many runs; each run keeps its own scheduler
// state.
type Engine struct {
	logger *slog.Logger
	pool   *semaphore.Weighted
	events eventbus.EventPublisher
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*Handle
}

type Option func(*Engine)

// WithEventBus publishes run lifecycle events to the given publisher.
func WithEventBus(pub eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.events = pub
	}
}

// WithWorkerPool sizes the shared pool bounding concurrent node executions.
// Size 0 disables the bound.
func WithWorkerPool(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.pool = semaphore.NewWeighted(int64(size))
		} else {
			e.pool = nil
		}
	}
}

// WithTracer traces runs and node executions with the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func New(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		pool:   semaphore.NewWeighted(DefaultWorkerPoolSize),
		tracer: noop.NewTracerProvider().Tracer("loom"),
		runs:   make(map[string]*Handle),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start begins a run over a compiled graph and returns immediately with its
// handle. The run is detached from the caller's context; use Cancel or the
// graph's overall timeout to stop it.
func (e *Engine) Start(ctx context.Context, graph *Graph, initialVariables map[string]any) (*Handle, error) {
	initial, err := seedVariables(graph.Workflow, initialVariables)
	if err != nil {
		return nil, err
	}

	runID := "run-" + uuid.New().String()[:8]

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if t := graph.Workflow.Settings.Timeout; t > 0 {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), time.Duration(t*float64(time.Second)))
	} else {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	r := &run{
		id:     runID,
		graph:  graph,
		engine: e,
		vars:   newVarStore(initial),
		logger: e.logger.With("run_id", runID, "workflow_id", graph.Workflow.ID),
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusPending,
	}

	handle := &Handle{run: r}

	e.mu.Lock()
	e.runs[runID] = handle
	e.mu.Unlock()

	go r.execute(runCtx)

	return handle, nil
}

// Run executes a graph synchronously and returns its terminal result.
func (e *Engine) Run(ctx context.Context, graph *Graph, initialVariables map[string]any) (*Result, error) {
	handle, err := e.Start(ctx, graph, initialVariables)
	if err != nil {
		return nil, err
	}

	return handle.Wait(ctx)
}

// Get returns the handle for a run ID.
func (e *Engine) Get(runID string) (*Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.runs[runID]

	return h, ok
}

// Cancel requests cooperative cancellation of a run.
func (e *Engine) Cancel(runID string) error {
	h, ok := e.Get(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	h.Cancel()

	return nil
}

// Status reports the current lifecycle state of a run.
func (e *Engine) Status(runID string) (Status, error) {
	h, ok := e.Get(runID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return h.Status(), nil
}

func (e *Engine) generateEventID() string {
	return uuid.New().String()
}

// Handle identifies a started run to its caller: poll Status, Cancel, or
// Wait for the terminal result.
type Handle struct {
	run *run
}

func (h *Handle) ID() string {
	return h.run.id
}

func (h *Handle) Status() Status {
	return h.run.Status()
}

// Cancel marks all active and queued positions cancelled; in-flight node
// executions are asked to stop at their next suspension point.
func (h *Handle) Cancel() {
	h.run.cancel()
}

// Wait blocks until the run reaches a terminal state or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	return h.run.result, nil
}

// Result returns the terminal result, or nil while the run is active.
func (h *Handle) Result() *Result {
	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	return h.run.result
}

// seedVariables lays the declared variable defaults down and overlays the
// caller's initial values, coercing each to its declared kind.
func seedVariables(wf *models.Workflow, initial map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(wf.Variables)+len(initial))

	for name, decl := range wf.Variables {
		if decl.Default != nil {
			out[name] = decl.Default
		}
	}

	for name, value := range initial {
		if decl, ok := wf.Variables[name]; ok && decl.Kind != "" {
			coerced, ok := Coerce(value, decl.Kind)
			if !ok {
				return nil, &TypeMismatchError{
					NodeID:   "variables",
					Port:     name,
					Expected: decl.Kind,
					Actual:   typeName(value),
				}
			}

			out[name] = coerced

			continue
		}

		out[name] = value
	}

	return out, nil
}
