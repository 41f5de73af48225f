package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loomhq/loom/pkg/protocol"
)

var ErrConfigNil = errors.New("config cannot be nil")

func NewTriggerFactory() protocol.TriggerFactory {
	return &TriggerFactory{}
}

type TriggerFactory struct{}

func (f *TriggerFactory) ID() string {
	return "queue"
}

func (f *TriggerFactory) Create(_ context.Context, config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue trigger: %w", err)
	}

	return trigger, nil
}
