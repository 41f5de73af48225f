// Package log provides logging node factory for registry integration.
package log

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct{}

func (f *LogNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLogNode(id, config)
}

func (f *LogNodeFactory) ID() string {
	return "log"
}

func (f *LogNodeFactory) Name() string {
	return "Log"
}

func (f *LogNodeFactory) Description() string {
	return "Logs a templated message at the configured level"
}

func (f *LogNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "message",
			Kind:        models.KindString,
			Required:    true,
			Description: "Message to log, with template support, e.g. Processing {{.vars.user_name}}",
		},
		{
			Name:        "level",
			Kind:        models.KindString,
			Default:     "info",
			Choices:     []any{"debug", "info", "warn", "error"},
			Description: "Log level for the message",
		},
	}
}

// NewLogNodeFactory creates a new factory instance.
func NewLogNodeFactory() protocol.NodeFactory {
	return &LogNodeFactory{}
}
