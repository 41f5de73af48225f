// Package delay provides the delay node that pauses an execution path for a
// fixed duration.
package delay

import (
	"context"
	"errors"
	"time"

	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// DelayNode sleeps for the configured duration, waking early on cancellation.
type DelayNode struct {
	id       string
	duration time.Duration
}

// NewDelayNode creates a new delay node.
func NewDelayNode(id string, config map[string]any) (*DelayNode, error) {
	seconds, ok := engine.ConfigFloat(config, "duration")
	if !ok || seconds < 0 {
		return nil, errors.New("missing or invalid field 'duration'")
	}

	return &DelayNode{
		id:       id,
		duration: time.Duration(seconds * float64(time.Second)),
	}, nil
}

func (n *DelayNode) ID() string {
	return n.id
}

func (n *DelayNode) Type() string {
	return "delay"
}

func (n *DelayNode) Execute(ctx context.Context, _ protocol.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	timer := time.NewTimer(n.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &protocol.Result{
		Outputs: map[string]any{"duration": n.duration.Seconds()},
		Next:    []string{models.ExecOutPort},
	}, nil
}

func (n *DelayNode) InputPorts() []models.InputPort {
	return []models.InputPort{models.ExecIn(n.id)}
}

func (n *DelayNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecOutPort),
		models.DataOut(n.id, "duration", models.KindFloat),
	}
}
