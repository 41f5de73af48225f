package engine

import (
	"fmt"
	"strconv"

	"github.com/loomhq/loom/pkg/models"
)

// Coerce converts value to the declared data kind where a lossless
// conversion exists (e.g. numeric string to float). It returns the converted
// value or false when no lossless conversion applies.
func Coerce(value any, kind models.DataKind) (any, bool) {
	if value == nil {
		return nil, true
	}

	switch kind {
	case models.KindAny, models.KindHandle:
		return value, true

	case models.KindString:
		switch v := value.(type) {
		case string:
			return v, true
		case bool:
			return strconv.FormatBool(v), true
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}

	case models.KindInteger:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, true
			}
		}

	case models.KindFloat:
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int32:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}

	case models.KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		}

	case models.KindList:
		if v, ok := value.([]any); ok {
			return v, true
		}

	case models.KindMapping:
		if v, ok := value.(map[string]any); ok {
			return v, true
		}
	}

	return nil, false
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}

	return fmt.Sprintf("%T", value)
}
