package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger_Defaults(t *testing.T) {
	trigger, err := NewTrigger(context.Background(), map[string]any{
		"id":          "t1",
		"workflow_id": "wf-1",
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "/webhook", trigger.Path)
	assert.Equal(t, "POST", trigger.Method)
	assert.True(t, trigger.Enabled)
}

func TestNewTrigger_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{
			name:    "missing workflow_id",
			config:  map[string]any{"id": "t1", "path": "/hooks/x"},
			wantErr: "workflow_id is required",
		},
		{
			name:    "path without leading slash",
			config:  map[string]any{"id": "t1", "workflow_id": "wf-1", "path": "hooks/x"},
			wantErr: "must start with '/'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrigger(context.Background(), tt.config, testLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
