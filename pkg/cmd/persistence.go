package cmd

import (
	"context"
	"log/slog"

	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/file"
)

// NewPersistence creates the persistence backend for a database URL. Only
// file:// URLs (or plain paths) are supported today.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	p, err := file.NewPersistence(databaseURL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialize persistence", "url", databaseURL, "error", err)
		panic(err)
	}

	return p
}
