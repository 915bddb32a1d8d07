package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ConvertToString converts various types to string
func ConvertToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ConvertToBool converts various types to bool
func ConvertToBool(value interface{}) bool {
	if value == nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1", "y", "t":
			return true
		default:
			return false
		}
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0
	case float32, float64:
		return reflect.ValueOf(v).Float() != 0.0
	default:
		return false
	}
}

// ConvertToInt converts various types to int
func ConvertToInt(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// AsInt64 reports whether value is a Go integer and returns it widened.
func AsInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int(), true
	case uint, uint8, uint16, uint32:
		return int64(reflect.ValueOf(v).Uint()), true
	}
	return 0, false
}

// AsFloat64 reports whether value is numeric and returns it as a float.
func AsFloat64(value interface{}) (float64, bool) {
	if i, ok := AsInt64(value); ok {
		return float64(i), true
	}
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// KindOf names the document kind of a value for error messages.
func KindOf(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "mapping"
	case []interface{}:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "bool"
	}
	if _, ok := AsFloat64(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

// DeepMergeInterfaceMaps recursively merges interface maps
func DeepMergeInterfaceMaps(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if existing, exists := result[k]; exists {
			// If both values are maps, merge them recursively
			if existingMap, ok := existing.(map[string]interface{}); ok {
				if overrideMap, ok := v.(map[string]interface{}); ok {
					result[k] = DeepMergeInterfaceMaps(existingMap, overrideMap)
					continue
				}
			}
		}
		result[k] = v
	}

	return result
}

// NormalizeValue converts decoder output and caller-supplied Go values into
// the document value set: map[string]interface{}, []interface{} and
// scalars. Any map kind becomes a string-keyed mapping (keys are
// stringified) and any slice or array kind a sequence; []byte is kept as a
// string.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		for k, item := range v {
			v[k] = NormalizeValue(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = NormalizeValue(item)
		}
		return v
	case []byte:
		return string(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		result := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			result[ConvertToString(iter.Key().Interface())] = NormalizeValue(iter.Value().Interface())
		}
		return result
	case reflect.Slice, reflect.Array:
		result := make([]interface{}, rv.Len())
		for i := range result {
			result[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return result
	default:
		return value
	}
}
