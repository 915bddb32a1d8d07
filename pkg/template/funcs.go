package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// registerBuiltinFunctions registers built-in template functions
func (e *Engine) registerBuiltinFunctions() {
	// String manipulation functions
	e.functions["upper"] = strings.ToUpper
	e.functions["lower"] = strings.ToLower
	e.functions["title"] = strings.Title
	e.functions["trim"] = strings.TrimSpace
	e.functions["replace"] = replaceString
	e.functions["split"] = strings.Split
	e.functions["join"] = joinValues
	e.functions["contains"] = strings.Contains
	e.functions["hasPrefix"] = strings.HasPrefix
	e.functions["hasSuffix"] = strings.HasSuffix

	// Type conversion functions
	e.functions["toString"] = types.ConvertToString
	e.functions["toInt"] = types.ConvertToInt
	e.functions["toBool"] = types.ConvertToBool

	// Collection functions
	e.functions["length"] = length
	e.functions["first"] = first
	e.functions["last"] = last

	// Logic functions
	e.functions["default"] = defaultValue
	e.functions["empty"] = isEmpty
	e.functions["ternary"] = ternary

	// Path functions
	e.functions["basename"] = filepath.Base
	e.functions["dirname"] = filepath.Dir
	e.functions["joinPath"] = filepath.Join
	e.functions["expandUser"] = expandUser

	// Formatting functions
	e.functions["quote"] = quote
	e.functions["indent"] = indent

	e.functions["regexReplace"] = regexReplace
	e.functions["env"] = os.Getenv
	e.functions["list"] = list
	e.functions["dict"] = dict

	e.registerCodecFunctions()
}

func length(v interface{}) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case []interface{}:
		return len(val)
	case map[string]interface{}:
		return len(val)
	default:
		return 0
	}
}

func first(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		if len(val) > 0 {
			return val[0]
		}
	case string:
		if len(val) > 0 {
			return string(val[0])
		}
	}
	return nil
}

func last(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		if len(val) > 0 {
			return val[len(val)-1]
		}
	case string:
		if len(val) > 0 {
			return string(val[len(val)-1])
		}
	}
	return nil
}

// defaultValue takes the piped value last, so `.x | default "y"` works.
func defaultValue(defaultVal, value interface{}) interface{} {
	if value == nil || value == "" {
		return defaultVal
	}
	return value
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	case bool:
		return !val
	case int:
		return val == 0
	case float64:
		return val == 0
	default:
		return false
	}
}

func ternary(condition bool, trueVal, falseVal interface{}) interface{} {
	if condition {
		return trueVal
	}
	return falseVal
}

func quote(v interface{}) string {
	return fmt.Sprintf("%q", types.ConvertToString(v))
}

func indent(spaces int, text string) string {
	prefix := strings.Repeat(" ", spaces)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func regexReplace(pattern, replacement, text string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, replacement)
}

func replaceString(old, new, s string) string {
	return strings.ReplaceAll(s, old, new)
}

// joinValues accepts the []interface{} sequences decoded from YAML.
func joinValues(sep string, items interface{}) string {
	switch v := items.(type) {
	case []string:
		return strings.Join(v, sep)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = types.ConvertToString(item)
		}
		return strings.Join(parts, sep)
	default:
		return types.ConvertToString(items)
	}
}

func expandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func list(items ...interface{}) []interface{} {
	return items
}

func dict(items ...interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i < len(items)-1; i += 2 {
		if key, ok := items[i].(string); ok {
			result[key] = items[i+1]
		}
	}
	return result
}

