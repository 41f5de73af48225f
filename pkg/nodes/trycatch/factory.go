package trycatch

import (
	"context"

	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// TryCatchNodeFactory creates TryCatchNode instances.
type TryCatchNodeFactory struct{}

func (f *TryCatchNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTryCatchNode(id, config)
}

func (f *TryCatchNodeFactory) ID() string {
	return "trycatch"
}

func (f *TryCatchNodeFactory) Name() string {
	return "Try/Catch"
}

func (f *TryCatchNodeFactory) Description() string {
	return "Runs its body sub-graph, routes failures to a catch handler with the error in scope, and always runs finally"
}

func (f *TryCatchNodeFactory) Properties() []schema.PropertySpec {
	return nil
}

// NewTryCatchNodeFactory creates a new factory instance.
func NewTryCatchNodeFactory() protocol.NodeFactory {
	return &TryCatchNodeFactory{}
}
