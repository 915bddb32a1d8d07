package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// LoadYAML reads a YAML file into a string-keyed map. An empty file yields
// an empty map.
func LoadYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.NewParseError(path, err)
	}
	if raw == nil {
		return map[string]interface{}{}, nil
	}

	doc, ok := types.NormalizeValue(raw).(map[string]interface{})
	if !ok {
		return nil, types.NewParseError(path, fmt.Errorf("top-level value is a %s, not a mapping", types.KindOf(raw)))
	}
	return doc, nil
}
