package registry

import (
	"github.com/loomhq/loom/pkg/triggers/queue"
	"github.com/loomhq/loom/pkg/triggers/schedule"
	"github.com/loomhq/loom/pkg/triggers/webhook"
)

// RegisterDefaultTriggers registers all built-in trigger factories with the
// registry.
func (r *Registry) RegisterDefaultTriggers() {
	r.RegisterTrigger(schedule.NewScheduleTriggerFactory())
	r.RegisterTrigger(queue.NewTriggerFactory())
	r.RegisterTrigger(webhook.NewTriggerFactory())
}
