package schema

// JSONSchema converts ordered property specs into a JSON Schema document,
// used by the API to describe registered node types.
func JSONSchema(specs []PropertySpec) map[string]any {
	properties := make(map[string]any, len(specs))
	required := make([]string, 0)

	for _, spec := range specs {
		prop := map[string]any{
			"type": jsonType(spec),
		}

		if spec.Description != "" {
			prop["description"] = spec.Description
		}

		if spec.Default != nil {
			prop["default"] = spec.Default
		}

		if spec.Minimum != nil {
			prop["minimum"] = *spec.Minimum
		}

		if spec.Maximum != nil {
			prop["maximum"] = *spec.Maximum
		}

		if len(spec.Choices) > 0 {
			prop["enum"] = spec.Choices
		}

		properties[spec.Name] = prop

		if spec.Required {
			required = append(required, spec.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		doc["required"] = required
	}

	return doc
}

func jsonType(spec PropertySpec) string {
	switch spec.Kind {
	case "string":
		return "string"
	case "integer":
		return "integer"
	case "float":
		return "number"
	case "boolean":
		return "boolean"
	case "list":
		return "array"
	case "mapping":
		return "object"
	default:
		return "object"
	}
}
