// Package yamlpatch edits YAML documents in place by dotted property paths.
//
// A path is a list of segments separated by dots. A literal dot inside a
// segment is written `\.` and a literal backslash `\\`. A segment of the form
// `name[N]` addresses element N of the sequence stored under name:
//
//	server.ports[0]        first element of server.ports
//	labels.app\.kubernetes\.io/name   key "app.kubernetes.io/name" under labels
//
// A Patcher loads the document when opened and writes it back to the same
// file on Close, but only when the edit succeeded:
//
//	err := yamlpatch.Edit("inputs.yaml", func(p *yamlpatch.Patcher) error {
//		if err := p.SetValue("agents.count", 3); err != nil {
//			return err
//		}
//		return p.DeleteProperty("debug", false)
//	})
package yamlpatch

import (
	"errors"
	"fmt"
	"os"

	"github.com/liliang-cn/deploytest/pkg/logging"
	"github.com/liliang-cn/deploytest/pkg/types"
)

// ErrClosed is returned when a Patcher is closed twice.
var ErrClosed = errors.New("yamlpatch: patcher already closed")

// Options controls how the document is written back.
type Options struct {
	// JSON writes compact JSON instead of YAML.
	JSON bool
	// FlowStyle writes every YAML mapping and sequence in flow style.
	FlowStyle bool
}

// Option configures a Patcher.
type Option func(*Options)

// WithJSON makes the patcher write compact JSON on Close.
func WithJSON() Option {
	return func(o *Options) { o.JSON = true }
}

// WithFlowStyle selects flow (true) or block (false) YAML output.
func WithFlowStyle(flow bool) Option {
	return func(o *Options) { o.FlowStyle = flow }
}

// DefaultOptions writes flow-style YAML.
func DefaultOptions() Options {
	return Options{FlowStyle: true}
}

// Patcher owns one loaded document for the duration of an edit.
type Patcher struct {
	path    string
	mode    os.FileMode
	options Options
	doc     map[string]interface{}
	keys    keyTable
	closed  bool

	original []byte
}

// Open loads the YAML document at path.
func Open(path string, opts ...Option) (*Patcher, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, path)
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, keys, err := decodeDocument(data)
	if err != nil {
		return nil, types.NewParseError(path, err)
	}

	logger := logging.GetLogger("yamlpatch")
	logger.Debug().
		Str("path", path).
		Bool("json", options.JSON).
		Bool("flowStyle", options.FlowStyle).
		Msg("Opened document for editing")

	return &Patcher{
		path:     path,
		mode:     info.Mode().Perm(),
		options:  options,
		doc:      doc,
		keys:     keys,
		original: data,
	}, nil
}

// Edit opens path, runs fn and writes the document back only if fn returns
// nil. A panic in fn propagates and leaves the file untouched.
func Edit(path string, fn func(p *Patcher) error, opts ...Option) error {
	p, err := Open(path, opts...)
	if err != nil {
		return err
	}
	return p.Close(fn(p))
}

// Close ends the edit. When editErr is nil the document is serialized and
// written over the source file; otherwise nothing is written and editErr
// is returned unchanged.
func (p *Patcher) Close(editErr error) error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true

	logger := logging.GetLogger("yamlpatch")
	if editErr != nil {
		logger.Debug().Err(editErr).Str("path", p.path).Msg("Edit failed, discarding changes")
		return editErr
	}

	data, err := p.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path, data, p.mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.path, err)
	}

	logger.Debug().Str("path", p.path).Int("bytes", len(data)).Msg("Wrote edited document")
	return nil
}

// Path returns the file the patcher writes to.
func (p *Patcher) Path() string {
	return p.path
}

// Document returns the live root mapping.
func (p *Patcher) Document() types.Document {
	return p.doc
}

// Bytes serializes the current document with the patcher's options.
func (p *Patcher) Bytes() ([]byte, error) {
	if p.options.JSON {
		return MarshalJSON(p.doc)
	}
	return marshalYAML(p.doc, p.options.FlowStyle, p.keys)
}

// MergeObject shallow-merges props into the mapping at path, creating every
// missing mapping along the way.
func (p *Patcher) MergeObject(path string, props map[string]interface{}) error {
	target, err := p.walk("merge", path, SplitPath(path), true)
	if err != nil {
		return err
	}

	for key, value := range props {
		target[key] = types.NormalizeValue(value)
	}
	return nil
}

// SetValue sets the property at path. A final `name[N]` segment overwrites
// element N of an existing sequence, or appends when N equals its length.
func (p *Patcher) SetValue(path string, value interface{}) error {
	parent, last, err := p.parent("set", path, true)
	if err != nil {
		return err
	}
	value = types.NormalizeValue(value)

	name, index, indexed := parseIndexed(last)
	if !indexed {
		parent[last] = value
		return nil
	}

	list, ok := parent[name].([]interface{})
	if !ok {
		return types.NewPatchError("set", path, types.ErrTypeMismatch,
			fmt.Sprintf("cannot set list value: %q is a %s", name, types.KindOf(parent[name])))
	}

	switch {
	case index > len(list):
		return types.NewPatchError("set", path, types.ErrIndexOutOfRange,
			fmt.Sprintf("index %d is beyond the end of %q (length %d)", index, name, len(list)))
	case index == len(list):
		parent[name] = append(list, value)
	default:
		list[index] = value
	}
	return nil
}

// AppendValue adds value to the existing property at path: sequences are
// concatenated, strings joined and numbers summed. A final `name[N]`
// segment names a literal key when one exists and element N of name
// otherwise.
func (p *Patcher) AppendValue(path string, value interface{}) error {
	parent, last, err := p.parent("append", path, false)
	if err != nil {
		return err
	}

	current, err := lookup("append", path, parent, last)
	if err != nil {
		return err
	}

	sum, err := addValues(current, types.NormalizeValue(value))
	if err != nil {
		return types.NewPatchError("append", path, types.ErrUnsupportedType, err.Error())
	}

	return store(parent, last, sum)
}

// DeleteProperty removes the property at path. A missing property is an
// error only when raiseIfMissing is set. A final `name[N]` segment is
// resolved like AppendValue's.
func (p *Patcher) DeleteProperty(path string, raiseIfMissing bool) error {
	parent, last, err := p.parent("delete", path, false)
	if errors.Is(err, types.ErrKeyMissing) && !raiseIfMissing {
		return nil
	}
	if err != nil {
		return err
	}

	if _, ok := parent[last]; ok {
		delete(parent, last)
		return nil
	}
	if name, index, indexed := parseIndexed(last); indexed {
		if list, ok := parent[name].([]interface{}); ok && index < len(list) {
			parent[name] = append(list[:index:index], list[index+1:]...)
			return nil
		}
	}

	if !raiseIfMissing {
		return nil
	}
	return types.NewPatchError("delete", path, types.ErrKeyMissing,
		fmt.Sprintf("cannot delete property %q as it is not a key in the object", last))
}

// GetValue returns the value at path without creating anything.
func (p *Patcher) GetValue(path string) (interface{}, error) {
	parent, last, err := p.parent("get", path, false)
	if err != nil {
		return nil, err
	}
	return lookup("get", path, parent, last)
}

// parent resolves every segment but the last and returns the mapping that
// holds the final segment.
func (p *Patcher) parent(op, path string, create bool) (map[string]interface{}, string, error) {
	segments := SplitPath(path)
	last := segments[len(segments)-1]

	parent, err := p.walk(op, path, segments[:len(segments)-1], create)
	if err != nil {
		return nil, "", err
	}
	return parent, last, nil
}

// walk descends through segments from the root. Missing plain segments are
// created as empty mappings when create is set and reported as
// ErrKeyMissing otherwise.
func (p *Patcher) walk(op, path string, segments []string, create bool) (map[string]interface{}, error) {
	current := p.doc

	for _, segment := range segments {
		var next interface{}

		if name, index, ok := parseIndexed(segment); ok {
			value, exists := current[name]
			if !exists {
				return nil, types.NewPatchError(op, path, types.ErrPath,
					fmt.Sprintf("property %q does not exist", name))
			}
			list, ok := value.([]interface{})
			if !ok {
				return nil, types.NewPatchError(op, path, types.ErrPath,
					fmt.Sprintf("property %q is a %s, not a sequence", name, types.KindOf(value)))
			}
			if index >= len(list) {
				return nil, types.NewPatchError(op, path, types.ErrIndexOutOfRange,
					fmt.Sprintf("index %d of %q (length %d)", index, name, len(list)))
			}
			next = list[index]
		} else {
			value, exists := current[segment]
			if !exists {
				if !create {
					return nil, types.NewPatchError(op, path, types.ErrKeyMissing,
						fmt.Sprintf("property %q does not exist", segment))
				}
				value = map[string]interface{}{}
				current[segment] = value
			}
			next = value
		}

		mapping, ok := next.(map[string]interface{})
		if !ok {
			return nil, types.NewPatchError(op, path, types.ErrPath,
				fmt.Sprintf("segment %q is a %s, not a mapping", segment, types.KindOf(next)))
		}
		current = mapping
	}

	return current, nil
}

// lookup reads the final segment from parent. A literal key wins over the
// indexed reading of `name[N]`.
func lookup(op, path string, parent map[string]interface{}, last string) (interface{}, error) {
	if value, exists := parent[last]; exists {
		return value, nil
	}

	if name, index, ok := parseIndexed(last); ok {
		value, exists := parent[name]
		if !exists {
			return nil, types.NewPatchError(op, path, types.ErrKeyMissing,
				fmt.Sprintf("property %q does not exist", name))
		}
		list, ok := value.([]interface{})
		if !ok {
			return nil, types.NewPatchError(op, path, types.ErrTypeMismatch,
				fmt.Sprintf("%q is a %s, not a sequence", name, types.KindOf(value)))
		}
		if index >= len(list) {
			return nil, types.NewPatchError(op, path, types.ErrIndexOutOfRange,
				fmt.Sprintf("index %d of %q (length %d)", index, name, len(list)))
		}
		return list[index], nil
	}

	return nil, types.NewPatchError(op, path, types.ErrKeyMissing,
		fmt.Sprintf("property %q does not exist", last))
}

// store writes value to a final segment that lookup already resolved.
func store(parent map[string]interface{}, last string, value interface{}) error {
	if _, exists := parent[last]; exists {
		parent[last] = value
		return nil
	}
	if name, index, ok := parseIndexed(last); ok {
		parent[name].([]interface{})[index] = value
		return nil
	}
	parent[last] = value
	return nil
}

// addValues implements append semantics for the document value set.
func addValues(current, value interface{}) (interface{}, error) {
	switch c := current.(type) {
	case []interface{}:
		if v, ok := value.([]interface{}); ok {
			result := make([]interface{}, 0, len(c)+len(v))
			result = append(result, c...)
			return append(result, v...), nil
		}
	case string:
		if v, ok := value.(string); ok {
			return c + v, nil
		}
	case bool:
		// bools are not numbers here
	default:
		if a, ok := types.AsInt64(current); ok {
			if b, ok := types.AsInt64(value); ok {
				sum := a + b
				if (b > 0 && sum < a) || (b < 0 && sum > a) || int64(int(sum)) != sum {
					return nil, fmt.Errorf("%d + %d overflows int", a, b)
				}
				return int(sum), nil
			}
		}
		if a, ok := types.AsFloat64(current); ok {
			if b, ok := types.AsFloat64(value); ok {
				return a + b, nil
			}
		}
	}

	return nil, fmt.Errorf("cannot add %s to %s", types.KindOf(value), types.KindOf(current))
}
