package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jinzhu/now"
)

// Field types understood by the record layer. "any" (the default) skips
// coercion entirely.
const (
	FieldString  = "string"
	FieldNumber  = "number"
	FieldBoolean = "boolean"
	FieldDate    = "date"
	FieldObject  = "object"
	FieldArray   = "array"
	FieldAny     = "any"
)

// Field describes one named property of a model.
type Field struct {
	Name    string
	Type    string
	Default interface{}
}

// Coerce converts value into the field's declared type. nil passes
// through untouched.
func (f *Field) Coerce(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch f.Type {
	case FieldString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil

	case FieldNumber:
		if n, ok := toNumber(value); ok {
			return n, nil
		}
		if s, ok := value.(string); ok {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q into number field %s", s, f.Name)
			}
			return n, nil
		}
		return nil, fmt.Errorf("cannot coerce %T into number field %s", value, f.Name)

	case FieldBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q into boolean field %s", v, f.Name)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T into boolean field %s", value, f.Name)
		}

	case FieldDate:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case *time.Time:
			return *v, nil
		case string:
			t, err := now.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q into date field %s: %v", v, f.Name, err)
			}
			return t, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T into date field %s", value, f.Name)
		}

	case FieldObject:
		if m, ok := value.(map[string]interface{}); ok {
			return m, nil
		}
		return nil, fmt.Errorf("cannot coerce %T into object field %s", value, f.Name)

	case FieldArray:
		if l, ok := value.([]interface{}); ok {
			return l, nil
		}
		return nil, fmt.Errorf("cannot coerce %T into array field %s", value, f.Name)

	default:
		return value, nil
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
