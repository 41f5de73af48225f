// Package queue provides a Redis-backed queue trigger.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/loomhq/loom/pkg/protocol"
	redis "github.com/redis/go-redis/v9"
)

const (
	popTimeout   = 1 * time.Second
	errorBackoff = 1 * time.Second
)

// Trigger consumes messages from a Redis list and starts a run per message.
// A payload that decodes as a JSON object becomes the run's initial
// variables; anything else is passed through under "message".
type Trigger struct {
	ID         string
	WorkflowID string
	Queue      string
	Connection map[string]string
	Enabled    bool

	client   redis.UniversalClient
	callback protocol.TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	workflowID, _ := config["workflow_id"].(string)
	queue, _ := config["queue"].(string)

	trigger := &Trigger{
		ID:         id,
		WorkflowID: workflowID,
		Queue:      queue,
		Connection: stringValues(config["connection"]),
		Enabled:    true,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(context.Background()); err != nil {
		return nil, err
	}

	return trigger, nil
}

// stringValues keeps only the string entries of a decoded connection object.
func stringValues(raw any) map[string]string {
	out := make(map[string]string)

	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}

	return out
}

func (t *Trigger) Validate(_ context.Context) error {
	if t.Queue == "" {
		return errors.New("queue trigger queue name is required")
	}

	if t.WorkflowID == "" {
		return errors.New("queue trigger workflow_id is required")
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "QueueTrigger is disabled")

		return nil
	}

	t.logger.InfoContext(ctx, "Starting QueueTrigger")
	t.callback = callback

	client, err := t.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	t.client = client

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) connect(ctx context.Context) (redis.UniversalClient, error) {
	addr := t.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if raw := t.Connection["db"]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid db value %q: %w", raw, err)
		}

		db = parsed
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: t.Connection["password"],
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return client, nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	t.logger.InfoContext(ctx, "Starting queue consumer", "queue", t.Queue)

	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
		}

		payload, ok, err := t.pop(ctx)
		if err != nil {
			t.logger.ErrorContext(ctx, "Error popping message", "error", err)
			time.Sleep(errorBackoff)

			continue
		}

		if ok {
			t.dispatch(ctx, payload)
		}
	}
}

func (t *Trigger) pop(ctx context.Context) (string, bool, error) {
	result, err := t.client.BLPop(ctx, popTimeout, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	// BLPop returns [queue, payload].
	if len(result) < 2 {
		return "", false, nil
	}

	return result[1], true, nil
}

func (t *Trigger) dispatch(ctx context.Context, payload string) {
	t.logger.InfoContext(ctx, "Received message from queue", "message", payload)

	var initialVariables map[string]any
	if err := json.Unmarshal([]byte(payload), &initialVariables); err != nil || initialVariables == nil {
		initialVariables = map[string]any{"message": payload}
	}

	initialVariables["triggered_at"] = time.Now().UTC().Format(time.RFC3339)

	go func() {
		if err := t.callback(ctx, t.WorkflowID, initialVariables); err != nil {
			t.logger.ErrorContext(ctx, "Error starting run for trigger", "error", err)
		}
	}()
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping QueueTrigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
