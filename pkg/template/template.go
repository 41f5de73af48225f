// Package template provides templating functionality for dynamic node
// configuration and conditions.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/loomhq/loom/pkg/protocol"
)

// RenderWithContext renders a template against the variables visible at the
// caller's position in a run. Scoped bindings (loop items, caught errors)
// shadow run-level variables of the same name.
func RenderWithContext(input string, run protocol.ExecutionContext) (any, error) {
	vars := run.Variables()

	data := map[string]any{
		"vars":      vars,
		"variables": vars,
		"env":       getEnvVars(),
		"run": map[string]any{
			"id":          run.RunID(),
			"workflow_id": run.WorkflowID(),
		},
	}

	return Render(input, data)
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("transform").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}
				num := make([]byte, 1)
				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// Parse structured output back into values so downstream ports see
	// lists and mappings, not their string forms.
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderBool renders a condition template and interprets the result as a
// boolean. Non-empty, non-"false", non-zero results are true.
func RenderBool(input string, run protocol.ExecutionContext) (bool, error) {
	value, err := RenderWithContext(input, run)
	if err != nil {
		return false, err
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "" && !strings.EqualFold(v, "false"), nil
	case nil:
		return false, nil
	default:
		return true, nil
	}
}

// NeedsTemplating checks if a string contains template expressions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
