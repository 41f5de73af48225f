package loop

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// LoopNodeFactory creates LoopNode instances.
type LoopNodeFactory struct{}

func (f *LoopNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLoopNode(id, config)
}

func (f *LoopNodeFactory) ID() string {
	return "loop"
}

func (f *LoopNodeFactory) Name() string {
	return "Loop"
}

func (f *LoopNodeFactory) Description() string {
	return "Repeats its body sub-graph while a condition template evaluates true, bounded by max_iterations"
}

func (f *LoopNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "condition",
			Kind:        models.KindString,
			Required:    true,
			Description: "Condition template re-evaluated before each iteration, e.g. {{lt .vars.counter 10}}",
		},
		{
			Name:        "max_iterations",
			Kind:        models.KindInteger,
			Default:     DefaultMaxIterations,
			Minimum:     schema.Float(1),
			Description: "Safety bound on iterations; exceeding it fails the loop",
		},
	}
}

// NewLoopNodeFactory creates a new factory instance.
func NewLoopNodeFactory() protocol.NodeFactory {
	return &LoopNodeFactory{}
}
