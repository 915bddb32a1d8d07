package template

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// registerCodecFunctions registers the encoding helpers suites use to
// inline structured values into inputs files.
func (e *Engine) registerCodecFunctions() {
	e.functions["toJson"] = toJSON
	e.functions["fromJson"] = fromJSON
	e.functions["toYaml"] = toYAML
	e.functions["fromYaml"] = fromYAML
	e.functions["b64encode"] = b64encode
	e.functions["b64decode"] = b64decode
	e.functions["sha256"] = sha256Hex
	e.functions["mandatory"] = mandatory
}

func toJSON(value interface{}) (string, error) {
	data, err := json.Marshal(types.NormalizeValue(value))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fromJSON(value interface{}) (interface{}, error) {
	var result interface{}
	if err := json.Unmarshal([]byte(types.ConvertToString(value)), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// toYAML renders value as a single-line flow document.
func toYAML(value interface{}) (string, error) {
	var node yaml.Node
	if err := node.Encode(types.NormalizeValue(value)); err != nil {
		return "", err
	}
	node.Style |= yaml.FlowStyle
	data, err := yaml.Marshal(&node)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func fromYAML(value interface{}) (interface{}, error) {
	var result interface{}
	if err := yaml.Unmarshal([]byte(types.ConvertToString(value)), &result); err != nil {
		return nil, err
	}
	return types.NormalizeValue(result), nil
}

func b64encode(value interface{}) string {
	return base64.StdEncoding.EncodeToString([]byte(types.ConvertToString(value)))
}

func b64decode(value interface{}) (string, error) {
	data, err := base64.StdEncoding.DecodeString(types.ConvertToString(value))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sha256Hex(value interface{}) string {
	sum := sha256.Sum256([]byte(types.ConvertToString(value)))
	return hex.EncodeToString(sum[:])
}

// mandatory fails the render when value is undefined.
func mandatory(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: mandatory variable is undefined", types.ErrTemplateFailed)
	}
	return value, nil
}
