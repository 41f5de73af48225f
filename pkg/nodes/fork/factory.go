package fork

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// ForkNodeFactory creates ForkNode instances.
type ForkNodeFactory struct{}

func (f *ForkNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewForkNode(id, config)
}

func (f *ForkNodeFactory) ID() string {
	return "fork"
}

func (f *ForkNodeFactory) Name() string {
	return "Fork"
}

func (f *ForkNodeFactory) Description() string {
	return "Runs its branch sub-graphs concurrently and continues once all of them have finished"
}

func (f *ForkNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "branch_count",
			Kind:        models.KindInteger,
			Default:     2,
			Minimum:     schema.Float(1),
			Maximum:     schema.Float(MaxBranches),
			Description: "Number of branch ports exposed by this fork",
		},
		{
			Name:        "fail_fast",
			Kind:        models.KindBoolean,
			Default:     true,
			Description: "Cancel sibling branches as soon as one branch fails",
		},
	}
}

// NewForkNodeFactory creates a new factory instance.
func NewForkNodeFactory() protocol.NodeFactory {
	return &ForkNodeFactory{}
}
