package foreach

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// ForEachNodeFactory creates ForEachNode instances.
type ForEachNodeFactory struct{}

func (f *ForEachNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewForEachNode(id, config)
}

func (f *ForEachNodeFactory) ID() string {
	return "foreach"
}

func (f *ForEachNodeFactory) Name() string {
	return "Parallel For Each"
}

func (f *ForEachNodeFactory) Description() string {
	return "Runs its body sub-graph once per list item with bounded parallelism, preserving item order in its results"
}

func (f *ForEachNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "batch_size",
			Kind:        models.KindInteger,
			Default:     1,
			Minimum:     schema.Float(1),
			Description: "Maximum number of iterations running concurrently",
		},
		{
			Name:        "fail_fast",
			Kind:        models.KindBoolean,
			Default:     true,
			Description: "Cancel remaining iterations as soon as one item fails",
		},
		{
			Name:        "timeout_per_item",
			Kind:        models.KindFloat,
			Minimum:     schema.Float(0),
			Description: "Per-item time limit in seconds; 0 disables the limit",
		},
		{
			Name:        "retry_on_timeout",
			Kind:        models.KindBoolean,
			Default:     false,
			Description: "Retry a timed-out item instead of treating the timeout as terminal",
		},
		{
			Name:        "item_retry_count",
			Kind:        models.KindInteger,
			Default:     0,
			Minimum:     schema.Float(0),
			Description: "Additional attempts per failing item",
		},
		{
			Name:        "item_retry_interval",
			Kind:        models.KindFloat,
			Minimum:     schema.Float(0),
			Description: "Seconds to wait between item attempts",
		},
	}
}

// NewForEachNodeFactory creates a new factory instance.
func NewForEachNodeFactory() protocol.NodeFactory {
	return &ForEachNodeFactory{}
}
