package yamlpatch

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// keyTable remembers the mapping keys that were not strings in the source
// (`1: a`, `true: b`) so they are written back with their original type.
// Entries are keyed by the address of the mapping holding the key.
type keyTable map[uintptr]typedKeys

type typedKeys struct {
	// mapping keeps the map reachable so its address is never reused.
	mapping map[string]interface{}
	keys    map[string]interface{}
}

func (t keyTable) record(mapping map[string]interface{}, name string, key interface{}) {
	id := reflect.ValueOf(mapping).Pointer()
	entry, ok := t[id]
	if !ok {
		entry = typedKeys{mapping: mapping, keys: map[string]interface{}{}}
		t[id] = entry
	}
	entry.keys[name] = key
}

// original returns the typed key stored under name in mapping, if any.
func (t keyTable) original(mapping map[string]interface{}, name string) (interface{}, bool) {
	if len(t) == 0 {
		return nil, false
	}
	entry, ok := t[reflect.ValueOf(mapping).Pointer()]
	if !ok {
		return nil, false
	}
	key, ok := entry.keys[name]
	return key, ok
}

// normalize converts decoder output into the document value set, recording
// every non-string key it stringifies.
func (t keyTable) normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, item := range v {
			name := types.ConvertToString(k)
			result[name] = t.normalize(item)
			if _, ok := k.(string); !ok {
				t.record(result, name, k)
			}
		}
		return result
	case map[string]interface{}:
		for k, item := range v {
			v[k] = t.normalize(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = t.normalize(item)
		}
		return v
	default:
		return types.NormalizeValue(v)
	}
}

// decodeDocument parses YAML (and therefore JSON) into a root mapping.
func decodeDocument(data []byte) (map[string]interface{}, keyTable, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	keys := keyTable{}
	switch doc := keys.normalize(raw).(type) {
	case nil:
		return map[string]interface{}{}, keys, nil
	case map[string]interface{}:
		return doc, keys, nil
	default:
		return nil, nil, fmt.Errorf("document root is a %s, not a mapping", types.KindOf(doc))
	}
}
