package conditional

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// ConditionalNodeFactory creates ConditionalNode instances.
type ConditionalNodeFactory struct{}

func (f *ConditionalNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionalNode(id, config)
}

func (f *ConditionalNodeFactory) ID() string {
	return "conditional"
}

func (f *ConditionalNodeFactory) Name() string {
	return "Conditional"
}

func (f *ConditionalNodeFactory) Description() string {
	return "Routes execution to its true or false port based on a condition template"
}

func (f *ConditionalNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "condition",
			Kind:        models.KindString,
			Required:    true,
			Description: "Condition template, e.g. {{gt .vars.total 100}} or {{eq .value \"ok\"}}",
		},
	}
}

// NewConditionalNodeFactory creates a new factory instance.
func NewConditionalNodeFactory() protocol.NodeFactory {
	return &ConditionalNodeFactory{}
}
