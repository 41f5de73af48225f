// Package schema declares node property schemas and a generic validator for
// configured property values.
package schema

import (
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// ErrSchemaViolation is wrapped by every Violation so callers can detect the
// whole class with errors.Is.
var ErrSchemaViolation = errors.New("schema violation")

// Violation reports a configured property value that does not satisfy the
// node type's declared schema.
type Violation struct {
	NodeID   string
	Property string
	Reason   string
}

func (e *Violation) Error() string {
	return fmt.Sprintf("schema violation on node %s property %q: %s", e.NodeID, e.Property, e.Reason)
}

func (e *Violation) Unwrap() error {
	return ErrSchemaViolation
}

// PropertySpec declares a single configurable property of a node type.
type PropertySpec struct {
	Name        string          `json:"name"`
	Kind        models.DataKind `json:"kind"`
	Required    bool            `json:"required,omitempty"`
	Default     any             `json:"default,omitempty"`
	Description string          `json:"description,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Choices     []any           `json:"choices,omitempty"`
}

// Float returns a *float64 for min/max constraints.
func Float(v float64) *float64 {
	return &v
}

// Validate checks configured property values against the ordered property
// specs of a node type. It returns the first violation found.
func Validate(nodeID string, specs []PropertySpec, config map[string]any) error {
	for _, spec := range specs {
		value, present := config[spec.Name]
		if !present || value == nil {
			if spec.Required && spec.Default == nil {
				return &Violation{NodeID: nodeID, Property: spec.Name, Reason: "required property is missing"}
			}

			continue
		}

		if err := checkKind(nodeID, spec, value); err != nil {
			return err
		}

		if err := checkConstraints(nodeID, spec, value); err != nil {
			return err
		}
	}

	return nil
}

func checkKind(nodeID string, spec PropertySpec, value any) error {
	ok := true

	switch spec.Kind {
	case models.KindString:
		_, ok = value.(string)
	case models.KindBoolean:
		_, ok = value.(bool)
	case models.KindInteger:
		ok = isIntegral(value)
	case models.KindFloat:
		_, ok = asFloat(value)
	case models.KindList:
		_, ok = value.([]any)
	case models.KindMapping:
		_, ok = value.(map[string]any)
	case models.KindAny, models.KindHandle:
		ok = true
	default:
		ok = false
	}

	if !ok {
		return &Violation{
			NodeID:   nodeID,
			Property: spec.Name,
			Reason:   fmt.Sprintf("expected %s, got %T", spec.Kind, value),
		}
	}

	return nil
}

func checkConstraints(nodeID string, spec PropertySpec, value any) error {
	if spec.Minimum != nil || spec.Maximum != nil {
		f, ok := asFloat(value)
		if ok {
			if spec.Minimum != nil && f < *spec.Minimum {
				return &Violation{
					NodeID:   nodeID,
					Property: spec.Name,
					Reason:   fmt.Sprintf("value %v below minimum %v", f, *spec.Minimum),
				}
			}

			if spec.Maximum != nil && f > *spec.Maximum {
				return &Violation{
					NodeID:   nodeID,
					Property: spec.Name,
					Reason:   fmt.Sprintf("value %v above maximum %v", f, *spec.Maximum),
				}
			}
		}
	}

	if len(spec.Choices) > 0 {
		for _, choice := range spec.Choices {
			if value == choice {
				return nil
			}
		}

		return &Violation{
			NodeID:   nodeID,
			Property: spec.Name,
			Reason:   fmt.Sprintf("value %v not in allowed choices", value),
		}
	}

	return nil
}

// ApplyDefaults returns a copy of config with declared defaults filled in for
// absent properties.
func ApplyDefaults(specs []PropertySpec, config map[string]any) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}

	for _, spec := range specs {
		if _, present := out[spec.Name]; !present && spec.Default != nil {
			out[spec.Name] = spec.Default
		}
	}

	return out
}

func isIntegral(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	default:
		return false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
