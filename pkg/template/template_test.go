package template

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRun struct {
	vars map[string]any
}

func (f *fakeRun) RunID() string      { return "run-1" }
func (f *fakeRun) WorkflowID() string { return "wf-1" }

func (f *fakeRun) Variable(name string) (any, bool) {
	v, ok := f.vars[name]

	return v, ok
}

func (f *fakeRun) SetVariable(name string, value any) {
	if f.vars == nil {
		f.vars = make(map[string]any)
	}

	f.vars[name] = value
}

func (f *fakeRun) Variables() map[string]any {
	out := make(map[string]any, len(f.vars))
	for k, v := range f.vars {
		out[k] = v
	}

	return out
}

func (f *fakeRun) RecordRecovered(error) {}

func (f *fakeRun) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     any
		expected any
	}{
		{
			name:     "plain string",
			template: "hello",
			data:     nil,
			expected: "hello",
		},
		{
			name:     "field access",
			template: "{{.name}}",
			data:     map[string]any{"name": "loom"},
			expected: "loom",
		},
		{
			name:     "numeric result parsed",
			template: "{{.count}}",
			data:     map[string]any{"count": 5},
			expected: float64(5),
		},
		{
			name:     "boolean result parsed",
			template: "{{.ok}}",
			data:     map[string]any{"ok": true},
			expected: true,
		},
		{
			name:     "json object parsed to mapping",
			template: `{"a": {{.count}}}`,
			data:     map[string]any{"count": 1},
			expected: map[string]any{"a": float64(1)},
		},
		{
			name:     "json array parsed to list",
			template: `[1, 2, 3]`,
			data:     nil,
			expected: []any{float64(1), float64(2), float64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{.broken", nil)
	require.Error(t, err)
}

func TestRenderWithContext(t *testing.T) {
	run := &fakeRun{vars: map[string]any{"city": "Lisbon"}}

	got, err := RenderWithContext("{{.vars.city}} / {{.run.id}}", run)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon / run-1", got)
}

func TestRenderBool(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		vars     map[string]any
		expected bool
	}{
		{"literal true", "true", nil, true},
		{"literal false", "false", nil, false},
		{"non-zero number", "{{.vars.n}}", map[string]any{"n": 3}, true},
		{"zero number", "{{.vars.n}}", map[string]any{"n": 0}, false},
		{"non-empty string", "something", nil, true},
		{"comparison", "{{gt .vars.n 1}}", map[string]any{"n": 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderBool(tt.input, &fakeRun{vars: tt.vars})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, NeedsTemplating("{{.x}}"))
	assert.False(t, NeedsTemplating("plain"))
}
