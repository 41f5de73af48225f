package engine

import (
	"sync"

	"github.com/loomhq/loom/pkg/protocol"
	"golang.org/x/sync/singleflight"
)

// frame is one evaluation scope: the root frame for the main path, a child
// frame per fork branch, loop iteration or for-each item. It holds the
// resolved-output cache (a node executes at most once per frame; loop
// re-entry gets a fresh frame, so cached outputs are recomputed) and the
// scoped variable bindings such as current_item/current_index.
type frame struct {
	parent *frame

	mu      sync.Mutex
	outputs map[string]*protocol.Result

	// flight collapses concurrent resolution of the same node instance in
	// sibling paths of this frame into a single execution.
	flight singleflight.Group

	scope map[string]any
}

func newFrame(parent *frame, scope map[string]any) *frame {
	return &frame{
		parent:  parent,
		outputs: make(map[string]*protocol.Result),
		scope:   scope,
	}
}

// cached looks the node's outputs up in this frame and its ancestors.
func (f *frame) cached(nodeID string) (*protocol.Result, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		fr.mu.Lock()
		res, ok := fr.outputs[nodeID]
		fr.mu.Unlock()

		if ok {
			return res, true
		}
	}

	return nil, false
}

func (f *frame) store(nodeID string, res *protocol.Result) {
	f.mu.Lock()
	f.outputs[nodeID] = res
	f.mu.Unlock()
}

// scopeVar reads a scoped binding, walking outward through enclosing frames.
func (f *frame) scopeVar(name string) (any, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if fr.scope != nil {
			if v, ok := fr.scope[name]; ok {
				return v, true
			}
		}
	}

	return nil, false
}
