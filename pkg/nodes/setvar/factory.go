package setvar

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// SetVariableNodeFactory creates SetVariableNode instances.
type SetVariableNodeFactory struct{}

func (f *SetVariableNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewSetVariableNode(id, config)
}

func (f *SetVariableNodeFactory) ID() string {
	return "setvar"
}

func (f *SetVariableNodeFactory) Name() string {
	return "Set Variable"
}

func (f *SetVariableNodeFactory) Description() string {
	return "Writes a value into the run's shared variable store"
}

func (f *SetVariableNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "name",
			Kind:        models.KindString,
			Required:    true,
			Description: "Variable name to write",
		},
		{
			Name:        "value",
			Kind:        models.KindAny,
			Description: "Value to store; string values support templating",
		},
	}
}

// NewSetVariableNodeFactory creates a new factory instance.
func NewSetVariableNodeFactory() protocol.NodeFactory {
	return &SetVariableNodeFactory{}
}
