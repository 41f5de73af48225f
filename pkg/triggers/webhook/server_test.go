package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newManager builds a manager directly so tests do not share the process-wide
// singleton.
func newManager() *ServerManager {
	return &ServerManager{
		handlers: make(map[string]*Handler),
		logger:   testLogger(),
		done:     make(chan struct{}),
	}
}

type capturedCall struct {
	workflowID string
	variables  map[string]any
}

func captureCallback(calls chan capturedCall) protocolCallback {
	return func(_ context.Context, workflowID string, initialVariables map[string]any) error {
		calls <- capturedCall{workflowID: workflowID, variables: initialVariables}

		return nil
	}
}

func TestServerManager_RegisterWebhook(t *testing.T) {
	manager := newManager()

	handler := &Handler{TriggerID: "t1", WorkflowID: "wf-1", Logger: testLogger()}
	require.NoError(t, manager.RegisterWebhook("/hooks/orders", handler))

	err := manager.RegisterWebhook("/hooks/orders", handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	manager.UnregisterWebhook("/hooks/orders")
	require.NoError(t, manager.RegisterWebhook("/hooks/orders", handler))
}

func TestServerManager_HandleWebhook_JSONBody(t *testing.T) {
	manager := newManager()
	calls := make(chan capturedCall, 1)

	require.NoError(t, manager.RegisterWebhook("/hooks/orders", &Handler{
		TriggerID:  "t1",
		WorkflowID: "wf-1",
		Method:     http.MethodPost,
		Callback:   captureCallback(calls),
		Logger:     testLogger(),
	}))

	req := httptest.NewRequest(http.MethodPost, "/hooks/orders", strings.NewReader(`{"order_id": "o-42"}`))
	rec := httptest.NewRecorder()

	manager.handleWebhook(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case call := <-calls:
		assert.Equal(t, "wf-1", call.workflowID)
		assert.Equal(t, "o-42", call.variables["order_id"])
		assert.NotEmpty(t, call.variables["triggered_at"])
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestServerManager_HandleWebhook_NonJSONBody(t *testing.T) {
	manager := newManager()
	calls := make(chan capturedCall, 1)

	require.NoError(t, manager.RegisterWebhook("/hooks/raw", &Handler{
		WorkflowID: "wf-1",
		Callback:   captureCallback(calls),
		Logger:     testLogger(),
	}))

	req := httptest.NewRequest(http.MethodPost, "/hooks/raw", strings.NewReader("plain text"))
	rec := httptest.NewRecorder()

	manager.handleWebhook(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case call := <-calls:
		assert.Equal(t, "plain text", call.variables["payload"])
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestServerManager_HandleWebhook_UnknownPath(t *testing.T) {
	manager := newManager()

	req := httptest.NewRequest(http.MethodPost, "/hooks/ghost", nil)
	rec := httptest.NewRecorder()

	manager.handleWebhook(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerManager_HandleWebhook_MethodMismatch(t *testing.T) {
	manager := newManager()

	require.NoError(t, manager.RegisterWebhook("/hooks/orders", &Handler{
		WorkflowID: "wf-1",
		Method:     http.MethodPost,
		Logger:     testLogger(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/hooks/orders", nil)
	rec := httptest.NewRecorder()

	manager.handleWebhook(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
