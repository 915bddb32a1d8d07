package yamlpatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MarshalYAML encodes doc as YAML. With flow set, every mapping and
// sequence is written inline (`{a: {b: [1, 2]}}`).
func MarshalYAML(doc interface{}, flow bool) ([]byte, error) {
	return marshalYAML(doc, flow, nil)
}

func marshalYAML(doc interface{}, flow bool, keys keyTable) ([]byte, error) {
	node, err := keys.node(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if flow {
		setFlowStyle(node)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// node builds the YAML node tree for value. Mapping keys are sorted and
// restored to their source type from the key table; timestamps are written
// as plain YAML timestamps.
func (t keyTable) node(value interface{}) (*yaml.Node, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)

		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, name := range names {
			var key interface{} = name
			if typed, ok := t.original(v, name); ok {
				key = typed
			}
			keyNode, err := t.node(key)
			if err != nil {
				return nil, err
			}
			valueNode, err := t.node(v[name])
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, keyNode, valueNode)
		}
		return n, nil
	case []interface{}:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v {
			itemNode, err := t.node(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, itemNode)
		}
		return n, nil
	case time.Time:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: formatTimestamp(v)}, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// formatTimestamp keeps date-only values short (`2001-12-14`).
func formatTimestamp(t time.Time) string {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// MarshalJSON encodes doc as compact JSON.
func MarshalJSON(doc interface{}) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document as JSON: %w", err)
	}
	return data, nil
}

// setFlowStyle marks every collection as flow style. Inside flow
// collections the emitter quotes scalars containing ':', so timestamps
// with a clock part keep an explicit !!timestamp tag.
func setFlowStyle(node *yaml.Node) {
	switch {
	case node.Kind == yaml.MappingNode || node.Kind == yaml.SequenceNode:
		node.Style |= yaml.FlowStyle
	case node.Kind == yaml.ScalarNode && node.Tag == "!!timestamp" && strings.Contains(node.Value, ":"):
		node.Style |= yaml.TaggedStyle
	}
	for _, child := range node.Content {
		setFlowStyle(child)
	}
}
