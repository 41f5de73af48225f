package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback starts a run for the workflow a trigger fires on. The
// trigger owns its own error logging; the engine does not log on its behalf.
type TriggerCallback func(ctx context.Context, workflowID string, initialVariables map[string]any) error

type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate(ctx context.Context) error
}

type TriggerFactory interface {
	Create(ctx context.Context, config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
