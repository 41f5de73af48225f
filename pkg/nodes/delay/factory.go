package delay

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// DelayNodeFactory creates DelayNode instances.
type DelayNodeFactory struct{}

func (f *DelayNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewDelayNode(id, config)
}

func (f *DelayNodeFactory) ID() string {
	return "delay"
}

func (f *DelayNodeFactory) Name() string {
	return "Delay"
}

func (f *DelayNodeFactory) Description() string {
	return "Pauses the execution path for a fixed number of seconds"
}

func (f *DelayNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "duration",
			Kind:        models.KindFloat,
			Required:    true,
			Minimum:     schema.Float(0),
			Description: "Seconds to wait before continuing",
		},
	}
}

// NewDelayNodeFactory creates a new factory instance.
func NewDelayNodeFactory() protocol.NodeFactory {
	return &DelayNodeFactory{}
}
