// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"

	"github.com/loomhq/loom/pkg/registry"
)

// NewRegistry builds the registry with built-in nodes and triggers plus any
// plugins found under pluginsPath.
func NewRegistry(ctx context.Context, logger *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()
	reg.RegisterDefaultTriggers()

	if pluginsPath != "" {
		registerNodePlugins(ctx, reg, logger, pluginsPath)
		registerTriggerPlugins(ctx, reg, logger, pluginsPath)
	}

	return reg
}

func registerNodePlugins(ctx context.Context, reg *registry.Registry, logger *slog.Logger, pluginsPath string) {
	factories, err := reg.LoadNodePlugins(pluginsPath)
	if err != nil {
		logger.WarnContext(ctx, "failed to load node plugins", "path", pluginsPath, "error", err)

		return
	}

	for _, f := range factories {
		reg.RegisterNode(f)
	}
}

func registerTriggerPlugins(ctx context.Context, reg *registry.Registry, logger *slog.Logger, pluginsPath string) {
	factories, err := reg.LoadTriggerPlugins(pluginsPath)
	if err != nil {
		logger.WarnContext(ctx, "failed to load trigger plugins", "path", pluginsPath, "error", err)

		return
	}

	for _, f := range factories {
		reg.RegisterTrigger(f)
	}
}
