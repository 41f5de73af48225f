package registry

import (
	"github.com/loomhq/loom/pkg/nodes/conditional"
	"github.com/loomhq/loom/pkg/nodes/delay"
	"github.com/loomhq/loom/pkg/nodes/foreach"
	"github.com/loomhq/loom/pkg/nodes/fork"
	"github.com/loomhq/loom/pkg/nodes/httprequest"
	lognode "github.com/loomhq/loom/pkg/nodes/log"
	"github.com/loomhq/loom/pkg/nodes/loop"
	"github.com/loomhq/loom/pkg/nodes/setvar"
	"github.com/loomhq/loom/pkg/nodes/transform"
	"github.com/loomhq/loom/pkg/nodes/trycatch"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	// Control flow
	r.RegisterNode(fork.NewForkNodeFactory())
	r.RegisterNode(foreach.NewForEachNodeFactory())
	r.RegisterNode(trycatch.NewTryCatchNodeFactory())
	r.RegisterNode(loop.NewLoopNodeFactory())
	r.RegisterNode(conditional.NewConditionalNodeFactory())

	// Leaf nodes
	r.RegisterNode(lognode.NewLogNodeFactory())
	r.RegisterNode(setvar.NewSetVariableNodeFactory())
	r.RegisterNode(transform.NewTransformNodeFactory())
	r.RegisterNode(delay.NewDelayNodeFactory())
	r.RegisterNode(httprequest.NewHTTPRequestNodeFactory())
}
