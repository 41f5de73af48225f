package engine

// configFloat reads a numeric node property. JSON decoding delivers numbers
// as float64; authored defaults may be typed ints.
func configFloat(config map[string]any, key string) (float64, bool) {
	if config == nil {
		return 0, false
	}

	switch v := config[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ConfigFloat exposes numeric property reading for node implementations.
func ConfigFloat(config map[string]any, key string) (float64, bool) {
	return configFloat(config, key)
}

// ConfigInt reads an integer node property.
func ConfigInt(config map[string]any, key string) (int, bool) {
	f, ok := configFloat(config, key)
	if !ok {
		return 0, false
	}

	return int(f), true
}

// ConfigBool reads a boolean node property.
func ConfigBool(config map[string]any, key string) (bool, bool) {
	if config == nil {
		return false, false
	}

	v, ok := config[key].(bool)

	return v, ok
}
