package schema

import (
	"fmt"
	"math"
	"strconv"
)

// castValue converts a raw parameter value to the field's declared type.
// JSON numbers arrive as float64 and query/form values as strings, so
// each type accepts the lexical forms a request can actually produce.
func castValue(t FieldType, raw any) (any, error) {
	switch t {
	case String:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("is invalid")
		}
		return s, nil

	case Integer:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("is invalid")
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("is invalid")
			}
			return n, nil
		default:
			return nil, fmt.Errorf("is invalid")
		}

	case Float:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("is invalid")
			}
			return f, nil
		default:
			return nil, fmt.Errorf("is invalid")
		}

	case Boolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("is invalid")
			}
			return b, nil
		default:
			return nil, fmt.Errorf("is invalid")
		}

	case Any, "":
		return raw, nil

	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}
