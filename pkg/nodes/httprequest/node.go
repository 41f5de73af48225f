// Package httprequest provides HTTP request node implementation for workflow
// graph execution.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/template"
)

const (
	InputPortBody  = "body"
	MaxBodyBytes   = 10 << 20
	defaultTimeout = 30 * time.Second
)

// HTTPError reports a non-success status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http request failed with status %d", e.StatusCode)
}

// HTTPRequestNode performs an HTTP request with templated URL, headers and
// body. Failures surface as node errors, so the engine-level retry policy
// declared on the node governs retries.
type HTTPRequestNode struct {
	id      string
	url     string
	method  string
	headers map[string]string
	body    string
	client  *http.Client
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any) (*HTTPRequestNode, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	n := &HTTPRequestNode{
		id:      id,
		url:     url,
		method:  http.MethodGet,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: defaultTimeout},
	}

	if method, ok := config["method"].(string); ok {
		n.method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				n.headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		n.body = body
	}

	return n, nil
}

func (n *HTTPRequestNode) ID() string {
	return n.id
}

func (n *HTTPRequestNode) Type() string {
	return "httprequest"
}

func (n *HTTPRequestNode) Execute(ctx context.Context, run protocol.ExecutionContext, inputs map[string]any) (*protocol.Result, error) {
	url, err := n.renderString(n.url, run)
	if err != nil {
		return nil, fmt.Errorf("failed to render URL template: %w", err)
	}

	body, err := n.resolveBody(run, inputs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, n.method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, value := range n.headers {
		rendered, err := n.renderString(value, run)
		if err != nil {
			rendered = value
		}

		req.Header.Set(key, rendered)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return &protocol.Result{
		Outputs: map[string]any{
			"status_code": resp.StatusCode,
			"body":        parseBody(resp.Header.Get("Content-Type"), raw),
			"headers":     flattenHeaders(resp.Header),
		},
		Next: []string{models.ExecOutPort},
	}, nil
}

// resolveBody prefers a value wired to the body port over the configured
// body template. Non-string wired values are JSON encoded.
func (n *HTTPRequestNode) resolveBody(run protocol.ExecutionContext, inputs map[string]any) (string, error) {
	if v, ok := inputs[InputPortBody]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}

		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode request body: %w", err)
		}

		return string(encoded), nil
	}

	if n.body == "" {
		return "", nil
	}

	rendered, err := template.RenderWithContext(n.body, run)
	if err != nil {
		return "", fmt.Errorf("failed to render body template: %w", err)
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	encoded, err := json.Marshal(rendered)
	if err != nil {
		return "", fmt.Errorf("failed to encode request body: %w", err)
	}

	return string(encoded), nil
}

func (n *HTTPRequestNode) renderString(input string, run protocol.ExecutionContext) (string, error) {
	if !template.NeedsTemplating(input) {
		return input, nil
	}

	rendered, err := template.RenderWithContext(input, run)
	if err != nil {
		return "", err
	}

	s, ok := rendered.(string)
	if !ok {
		return fmt.Sprintf("%v", rendered), nil
	}

	return s, nil
}

func parseBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}

	return string(raw)
}

func flattenHeaders(header http.Header) map[string]any {
	out := make(map[string]any, len(header))
	for key := range header {
		out[key] = header.Get(key)
	}

	return out
}

func (n *HTTPRequestNode) InputPorts() []models.InputPort {
	body := models.DataIn(n.id, InputPortBody, models.KindAny)
	body.Description = "Request body; overrides the configured body template when wired"

	return []models.InputPort{models.ExecIn(n.id), body}
}

func (n *HTTPRequestNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		models.ExecOut(n.id, models.ExecOutPort),
		models.DataOut(n.id, "status_code", models.KindInteger),
		models.DataOut(n.id, "body", models.KindAny),
		models.DataOut(n.id, "headers", models.KindMapping),
	}
}
