package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is an in-process stand-in for the watermill bus. Published events
// are captured, Handle registers handlers and Subscribe is a no-op.
type fakeBus struct {
	mu        sync.Mutex
	published []eventbus.Event
	handlers  map[events.EventType]eventbus.EventHandler
	failNext  error
	nextID    int
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[events.EventType]eventbus.EventHandler)}
}

func (b *fakeBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil

		return err
	}

	b.published = append(b.published, event)

	return nil
}

func (b *fakeBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = handler

	return nil
}

func (b *fakeBus) Subscribe(_ context.Context) error { return nil }

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) GenerateID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++

	return fmt.Sprintf("id-%d", b.nextID)
}

func (b *fakeBus) events() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]eventbus.Event(nil), b.published...)
}

func dispatcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func register(t *testing.T, d *Dispatcher, robotID string, capacity int) {
	t.Helper()

	err := d.onRobotRegistered(context.Background(), &events.RobotRegistered{
		BaseEvent: events.BaseEvent{Type: events.RobotRegisteredEvent, Timestamp: time.Now()},
		RobotID:   robotID,
		Capacity:  capacity,
	})
	require.NoError(t, err)
}

func assignedRobots(t *testing.T, bus *fakeBus) []string {
	t.Helper()

	out := make([]string, 0, len(bus.events()))

	for _, event := range bus.events() {
		assigned, ok := event.(events.RunAssigned)
		require.True(t, ok, "expected RunAssigned, got %T", event)
		out = append(out, assigned.RobotID)
	}

	return out
}

func TestDispatcher_NoRobots(t *testing.T) {
	d := NewDispatcher(dispatcherLogger(), newFakeBus(), newFakeBus())

	_, err := d.Dispatch(context.Background(), "wf-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRobotAvailable)
}

func TestDispatcher_RoundRobin(t *testing.T) {
	assignments := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), assignments, newFakeBus())

	register(t, d, "r1", 2)
	register(t, d, "r2", 2)

	for range 4 {
		_, err := d.Dispatch(context.Background(), "wf-1", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"r1", "r2", "r1", "r2"}, assignedRobots(t, assignments))
}

func TestDispatcher_SkipsRobotAtCapacity(t *testing.T) {
	assignments := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), assignments, newFakeBus())

	register(t, d, "r1", 1)
	register(t, d, "r2", 2)

	for range 3 {
		_, err := d.Dispatch(context.Background(), "wf-1", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"r1", "r2", "r2"}, assignedRobots(t, assignments))

	_, err := d.Dispatch(context.Background(), "wf-1", nil)
	assert.ErrorIs(t, err, ErrNoRobotAvailable)
}

func TestDispatcher_TerminalStatusFreesCapacity(t *testing.T) {
	assignments := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), assignments, newFakeBus())

	register(t, d, "r1", 1)

	asgID, err := d.Dispatch(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "wf-1", nil)
	require.ErrorIs(t, err, ErrNoRobotAvailable)

	err = d.onRobotStatus(context.Background(), &events.RobotStatus{
		AssignmentID: asgID,
		RobotID:      "r1",
		Status:       "completed",
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "wf-1", nil)
	assert.NoError(t, err)
}

func TestDispatcher_RunningStatusKeepsSlot(t *testing.T) {
	d := NewDispatcher(dispatcherLogger(), newFakeBus(), newFakeBus())

	register(t, d, "r1", 1)

	asgID, err := d.Dispatch(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	err = d.onRobotStatus(context.Background(), &events.RobotStatus{
		AssignmentID: asgID,
		RobotID:      "r1",
		Status:       "running",
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "wf-1", nil)
	assert.ErrorIs(t, err, ErrNoRobotAvailable)
}

func TestDispatcher_PublishFailureReleasesSlot(t *testing.T) {
	assignments := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), assignments, newFakeBus())

	register(t, d, "r1", 1)
	assignments.failNext = errors.New("broker down")

	_, err := d.Dispatch(context.Background(), "wf-1", nil)
	require.Error(t, err)

	_, err = d.Dispatch(context.Background(), "wf-1", nil)
	assert.NoError(t, err, "the slot taken by the failed publish is returned")
}

func TestDispatcher_AssignmentCarriesVariables(t *testing.T) {
	assignments := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), assignments, newFakeBus())

	register(t, d, "r1", 1)

	asgID, err := d.Dispatch(context.Background(), "wf-1", map[string]any{"city": "Lisbon"})
	require.NoError(t, err)
	require.Len(t, assignments.events(), 1)

	assigned, ok := assignments.events()[0].(events.RunAssigned)
	require.True(t, ok)

	assert.Equal(t, asgID, assigned.AssignmentID)
	assert.Equal(t, "wf-1", assigned.WorkflowID)
	assert.Equal(t, "Lisbon", assigned.Variables["city"])
}

func TestDispatcher_ReregistrationResetsCapacity(t *testing.T) {
	d := NewDispatcher(dispatcherLogger(), newFakeBus(), newFakeBus())

	register(t, d, "r1", 1)

	_, err := d.Dispatch(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	// A restarted robot announces itself again and starts from zero active runs.
	register(t, d, "r1", 1)

	_, err = d.Dispatch(context.Background(), "wf-1", nil)
	assert.NoError(t, err)

	robots := d.Robots()
	require.Len(t, robots, 1)
	assert.Equal(t, "r1", robots[0].ID)
}

func TestDispatcher_StartWiresStatusHandlers(t *testing.T) {
	status := newFakeBus()
	d := NewDispatcher(dispatcherLogger(), newFakeBus(), status)

	require.NoError(t, d.Start(context.Background()))

	assert.Contains(t, status.handlers, events.RobotRegisteredEvent)
	assert.Contains(t, status.handlers, events.RobotStatusEvent)
}
