package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var (
	globalServerManager *ServerManager
	once                sync.Once
)

// Handler dispatches one registered webhook path to its trigger callback.
type Handler struct {
	TriggerID  string
	WorkflowID string
	Method     string
	Callback   protocolCallback
	Logger     *slog.Logger
}

type protocolCallback func(ctx context.Context, workflowID string, initialVariables map[string]any) error

// ServerManager owns the single HTTP server shared by every webhook trigger
// in the process. Triggers register paths; the manager routes requests.
type ServerManager struct {
	server   *http.Server
	handlers map[string]*Handler
	mu       sync.RWMutex
	logger   *slog.Logger
	port     int
	started  bool
	done     chan struct{}
	doneOnce sync.Once
}

// GetServerManager returns the process-wide manager, creating it on first use.
func GetServerManager(port int, logger *slog.Logger) *ServerManager {
	once.Do(func() {
		globalServerManager = &ServerManager{
			handlers: make(map[string]*Handler),
			logger:   logger.With("module", "webhook_server_manager"),
			port:     port,
			done:     make(chan struct{}),
		}
	})

	return globalServerManager
}

func GetGlobalServerManager() *ServerManager {
	return globalServerManager
}

func (sm *ServerManager) RegisterWebhook(path string, handler *Handler) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.handlers[path]; exists {
		return fmt.Errorf("webhook path %s already registered", path)
	}

	sm.handlers[path] = handler
	sm.logger.Info("Registered webhook handler", "path", path, "trigger_id", handler.TriggerID)

	return nil
}

func (sm *ServerManager) UnregisterWebhook(path string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if handler, exists := sm.handlers[path]; exists {
		delete(sm.handlers, path)
		sm.logger.Info("Unregistered webhook handler", "path", path, "trigger_id", handler.TriggerID)
	}
}

func (sm *ServerManager) Start(_ context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.started {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", sm.handleWebhook)

	sm.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", sm.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sm.logger.Info("Starting webhook server", "port", sm.port)

		if err := sm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sm.logger.Error("Webhook server failed", "error", err)
		}

		sm.doneOnce.Do(func() { close(sm.done) })
	}()

	sm.started = true

	return nil
}

func (sm *ServerManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.started || sm.server == nil {
		return nil
	}

	sm.logger.Info("Stopping webhook server")
	sm.doneOnce.Do(func() { close(sm.done) })

	return sm.server.Shutdown(ctx)
}

// Done is closed when the server stops.
func (sm *ServerManager) Done() <-chan struct{} {
	return sm.done
}

func (sm *ServerManager) handleWebhook(w http.ResponseWriter, r *http.Request) {
	sm.mu.RLock()
	handler, exists := sm.handlers[r.URL.Path]
	sm.mu.RUnlock()

	if !exists {
		http.NotFound(w, r)

		return
	}

	if handler.Method != "" && r.Method != handler.Method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)

		return
	}

	var initialVariables map[string]any
	if err := json.Unmarshal(body, &initialVariables); err != nil || initialVariables == nil {
		initialVariables = map[string]any{"payload": string(body)}
	}

	initialVariables["triggered_at"] = time.Now().UTC().Format(time.RFC3339)

	go func() {
		if err := handler.Callback(context.Background(), handler.WorkflowID, initialVariables); err != nil {
			handler.Logger.Error("Error starting run for webhook", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}
