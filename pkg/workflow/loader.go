// Package workflow loads, validates and compiles workflow documents into
// executable graphs.
package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/loomhq/loom/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow_schema.json
var documentSchema string

// ErrInvalidDocument marks a document that fails schema validation before it
// is ever decoded into a workflow.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Parse decodes a workflow document. The raw document is validated against
// the document schema first, so decoding never silently drops or defaults
// malformed sections.
func Parse(data []byte) (*models.Workflow, error) {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(reasons, "; "))
	}

	var wf models.Workflow

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	if err := decoder.Decode(&wf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	normalizeNumbers(&wf)
	applyEnabledDefaults(data, &wf)

	return &wf, nil
}

// applyEnabledDefaults treats a node or trigger with no "enabled" key as
// enabled. Zero-value decoding would otherwise silently disable it.
func applyEnabledDefaults(data []byte, wf *models.Workflow) {
	var doc struct {
		Nodes    []map[string]json.RawMessage `json:"nodes"`
		Triggers []map[string]json.RawMessage `json:"triggers"`
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return
	}

	for i, raw := range doc.Nodes {
		if _, ok := raw["enabled"]; !ok && i < len(wf.Nodes) {
			wf.Nodes[i].Enabled = true
		}
	}

	for i, raw := range doc.Triggers {
		if _, ok := raw["enabled"]; !ok && i < len(wf.Triggers) {
			wf.Triggers[i].Enabled = true
		}
	}
}

// Marshal serializes a workflow canonically: two-space indentation, struct
// field order, map keys sorted. Serializing the same workflow always yields
// the same bytes, and Parse(Marshal(w)) loses nothing.
func Marshal(wf *models.Workflow) ([]byte, error) {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow: %w", err)
	}

	return append(data, '\n'), nil
}

// normalizeNumbers rewrites json.Number values into int64 or float64 so node
// configuration and variable defaults carry ordinary Go numerics. Integral
// literals stay integral instead of collapsing to float64.
func normalizeNumbers(wf *models.Workflow) {
	for _, n := range wf.Nodes {
		n.Config = normalizeMap(n.Config)
	}

	for _, t := range wf.Triggers {
		t.Config = normalizeMap(t.Config)
	}

	for _, v := range wf.Variables {
		if v != nil {
			v.Default = normalizeValue(v.Default)
		}
	}
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}

	return m
}

func normalizeValue(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}

		if f, err := value.Float64(); err == nil {
			return f
		}

		return value.String()
	case map[string]any:
		return normalizeMap(value)
	case []any:
		for i, item := range value {
			value[i] = normalizeValue(item)
		}

		return value
	default:
		return v
	}
}
