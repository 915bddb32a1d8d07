package yamlpatch

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	testhelper "github.com/liliang-cn/deploytest/pkg/testing"
	"github.com/liliang-cn/deploytest/pkg/types"
)

func openDoc(t *testing.T, content string, opts ...Option) (*Patcher, *testhelper.Fixture) {
	t.Helper()

	fx := testhelper.NewFixture(t)
	path := fx.WriteFile("doc.yaml", content)

	p, err := Open(path, opts...)
	require.NoError(t, err)
	return p, fx
}

func TestOpen(t *testing.T) {
	t.Run("empty file loads as empty mapping", func(t *testing.T) {
		p, _ := openDoc(t, "")
		assert.Equal(t, map[string]interface{}{}, p.Document())
	})

	t.Run("invalid yaml is a parse error", func(t *testing.T) {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("bad.yaml", "a: [1, 2\n")

		_, err := Open(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrParse))
	})

	t.Run("non-mapping root is a parse error", func(t *testing.T) {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("list.yaml", "- 1\n- 2\n")

		_, err := Open(path)
		assert.ErrorIs(t, err, types.ErrParse)
	})

	t.Run("missing file", func(t *testing.T) {
		fx := testhelper.NewFixture(t)

		_, err := Open(fx.Path("nope.yaml"))
		assert.ErrorIs(t, err, types.ErrFileNotFound)
	})

	t.Run("json input", func(t *testing.T) {
		p, _ := openDoc(t, `{"a": {"b": [1, 2]}}`)
		assert.Equal(t, []interface{}{1, 2}, p.Document()["a"].(map[string]interface{})["b"])
	})
}

func TestSetValue(t *testing.T) {
	t.Run("existing plain key reads back", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: 1}\n")

		require.NoError(t, p.SetValue("a.b", "two"))
		got, err := p.GetValue("a.b")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("missing intermediate mappings are created", func(t *testing.T) {
		p, _ := openDoc(t, "")

		require.NoError(t, p.SetValue("x.y.z", 5))
		assert.Equal(t, map[string]interface{}{
			"x": map[string]interface{}{"y": map[string]interface{}{"z": 5}},
		}, p.Document())
	})

	t.Run("append at length", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: [1, 2, 3]}\n")

		require.NoError(t, p.SetValue("a.b[3]", 4))
		got, _ := p.GetValue("a.b")
		assert.Equal(t, []interface{}{1, 2, 3, 4}, got)
	})

	t.Run("overwrite keeps length", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: [1, 2, 3]}\n")

		require.NoError(t, p.SetValue("a.b[1]", 20))
		got, _ := p.GetValue("a.b")
		assert.Equal(t, []interface{}{1, 20, 3}, got)
	})

	t.Run("beyond length fails", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: [1, 2, 3]}\n")

		err := p.SetValue("a.b[5]", 9)
		assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
		got, _ := p.GetValue("a.b")
		assert.Equal(t, []interface{}{1, 2, 3}, got)
	})

	t.Run("indexed set on non-sequence", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: text}\n")

		assert.ErrorIs(t, p.SetValue("a.b[0]", 1), types.ErrTypeMismatch)
		assert.ErrorIs(t, p.SetValue("a.missing[0]", 1), types.ErrTypeMismatch)
	})

	t.Run("through indexed intermediate", func(t *testing.T) {
		p, _ := openDoc(t, "items: [{name: a}, {name: b}]\n")

		require.NoError(t, p.SetValue("items[1].name", "c"))
		got, _ := p.GetValue("items[1].name")
		assert.Equal(t, "c", got)

		assert.ErrorIs(t, p.SetValue("items[2].name", "d"), types.ErrIndexOutOfRange)
		assert.ErrorIs(t, p.SetValue("missing[0].name", "d"), types.ErrPath)
	})

	t.Run("indexed intermediate that is not a sequence", func(t *testing.T) {
		p, _ := openDoc(t, "a: text\nitems: [1, 2]\n")

		assert.ErrorIs(t, p.SetValue("a[0].x", 1), types.ErrPath)
		assert.ErrorIs(t, p.SetValue("items[0].x", 1), types.ErrPath)
	})

	t.Run("plain intermediate that is a scalar", func(t *testing.T) {
		p, _ := openDoc(t, "a: 1\n")

		assert.ErrorIs(t, p.SetValue("a.b", 1), types.ErrPath)
	})

	t.Run("escaped dot addresses a single key", func(t *testing.T) {
		p, _ := openDoc(t, "")

		require.NoError(t, p.SetValue(`a\.b.c`, true))
		assert.Equal(t, map[string]interface{}{
			"a.b": map[string]interface{}{"c": true},
		}, p.Document())
	})

	t.Run("slice values are normalized", func(t *testing.T) {
		p, _ := openDoc(t, "")

		require.NoError(t, p.SetValue("hosts", []string{"a", "b"}))
		assert.Equal(t, []interface{}{"a", "b"}, p.Document()["hosts"])
	})
}

func TestMergeObject(t *testing.T) {
	t.Run("shallow merge replaces nested values", func(t *testing.T) {
		p, _ := openDoc(t, "a: {x: 1, y: {k: 1}}\n")

		require.NoError(t, p.MergeObject("a", map[string]interface{}{
			"y": map[string]interface{}{"z": 2},
			"w": 3,
		}))

		assert.Equal(t, map[string]interface{}{
			"x": 1,
			"y": map[string]interface{}{"z": 2},
			"w": 3,
		}, p.Document()["a"])
	})

	t.Run("creates the target mapping", func(t *testing.T) {
		p, _ := openDoc(t, "")

		require.NoError(t, p.MergeObject("new.obj", map[string]interface{}{"k": "v"}))
		got, err := p.GetValue("new.obj.k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("merges into a sequence element", func(t *testing.T) {
		p, _ := openDoc(t, "nodes: [{id: 1}]\n")

		require.NoError(t, p.MergeObject("nodes[0]", map[string]interface{}{"ip": "10.0.0.1"}))
		assert.Equal(t, []interface{}{
			map[string]interface{}{"id": 1, "ip": "10.0.0.1"},
		}, p.Document()["nodes"])
	})

	t.Run("target must be a mapping", func(t *testing.T) {
		p, _ := openDoc(t, "a: [1]\n")

		assert.ErrorIs(t, p.MergeObject("a", map[string]interface{}{"k": 1}), types.ErrPath)
	})
}

func TestAppendValue(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		path     string
		value    interface{}
		expected interface{}
		wantErr  error
	}{
		{"sequence concatenation", "l: [1, 2]\n", "l", []interface{}{3}, []interface{}{1, 2, 3}, nil},
		{"string concatenation", "s: foo\n", "s", "bar", "foobar", nil},
		{"integer addition", "n: 40\n", "n", 2, 42, nil},
		{"float addition", "n: 1.5\n", "n", 1, 2.5, nil},
		{"indexed element", "l: [a, b]\n", "l[1]", "c", "bc", nil},
		{"missing key", "a: {}\n", "a.b", []interface{}{1}, nil, types.ErrKeyMissing},
		{"mapping operands", "m: {a: 1}\n", "m", map[string]interface{}{"b": 2}, nil, types.ErrUnsupportedType},
		{"sequence plus scalar", "l: [1]\n", "l", 2, nil, types.ErrUnsupportedType},
		{"string plus number", "s: foo\n", "s", 1, nil, types.ErrUnsupportedType},
		{"bool operands", "b: true\n", "b", true, nil, types.ErrUnsupportedType},
		{"integer overflow", "n: 9223372036854775807\n", "n", 1, nil, types.ErrUnsupportedType},
		{"typed slice operand", "l: [1, 2]\n", "l", []int{3}, []interface{}{1, 2, 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := openDoc(t, tt.doc)

			err := p.AppendValue(tt.path, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, err := p.GetValue(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLiteralIndexedKey(t *testing.T) {
	p, _ := openDoc(t, "\"x[0]\": 5\nx: [a]\n")

	require.NoError(t, p.AppendValue("x[0]", 1))
	got, err := p.GetValue("x[0]")
	require.NoError(t, err)
	assert.Equal(t, 6, got)
	assert.Equal(t, []interface{}{"a"}, p.Document()["x"])

	require.NoError(t, p.DeleteProperty("x[0]", true))
	assert.NotContains(t, p.Document(), "x[0]")
	assert.Equal(t, []interface{}{"a"}, p.Document()["x"])

	// With the literal key gone the segment addresses the sequence.
	require.NoError(t, p.DeleteProperty("x[0]", true))
	assert.Equal(t, []interface{}{}, p.Document()["x"])
}

func TestTypedGoValues(t *testing.T) {
	p, _ := openDoc(t, "name: manager\n")

	require.NoError(t, p.SetValue("labels", map[string]string{"a": "b"}))
	require.NoError(t, p.SetValue("labels.c", "d"))
	assert.Equal(t, map[string]interface{}{"a": "b", "c": "d"}, p.Document()["labels"])

	require.NoError(t, p.SetValue("ports", []int{22, 80}))
	require.NoError(t, p.AppendValue("ports", []int{443}))
	require.NoError(t, p.SetValue("ports[3]", 8080))
	assert.Equal(t, []interface{}{22, 80, 443, 8080}, p.Document()["ports"])

	require.NoError(t, p.MergeObject("labels", map[string]interface{}{"tiers": []string{"web"}}))
	require.NoError(t, p.AppendValue("labels.tiers", []string{"db"}))
	got, err := p.GetValue("labels.tiers")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"web", "db"}, got)
}

func TestAppendMatchesSetOfSum(t *testing.T) {
	appended, _ := openDoc(t, "list: [a, b]\n")
	set, _ := openDoc(t, "list: [a, b]\n")

	require.NoError(t, appended.AppendValue("list", []interface{}{"c"}))
	require.NoError(t, set.SetValue("list", []interface{}{"a", "b", "c"}))

	assert.Equal(t, set.Document(), appended.Document())
}

func TestAppendValueDoesNotCreateIntermediates(t *testing.T) {
	p, _ := openDoc(t, "")

	assert.ErrorIs(t, p.AppendValue("missing.key", 1), types.ErrKeyMissing)
	assert.Empty(t, p.Document())
}

func TestDeleteProperty(t *testing.T) {
	t.Run("existing key", func(t *testing.T) {
		p, _ := openDoc(t, "a: {b: 1, c: 2}\n")

		require.NoError(t, p.DeleteProperty("a.b", true))
		assert.Equal(t, map[string]interface{}{"c": 2}, p.Document()["a"])
	})

	t.Run("missing key raises", func(t *testing.T) {
		p, _ := openDoc(t, "a: {}\n")

		assert.ErrorIs(t, p.DeleteProperty("a.b", true), types.ErrKeyMissing)
		assert.ErrorIs(t, p.DeleteProperty("missing.key", true), types.ErrKeyMissing)
	})

	t.Run("missing key is a no-op when not raising", func(t *testing.T) {
		p, _ := openDoc(t, "a: 1\n")

		require.NoError(t, p.DeleteProperty("missing.key", false))
		require.NoError(t, p.DeleteProperty("b", false))
		assert.Equal(t, map[string]interface{}{"a": 1}, p.Document())
	})

	t.Run("sequence element", func(t *testing.T) {
		p, _ := openDoc(t, "l: [1, 2, 3]\n")

		require.NoError(t, p.DeleteProperty("l[1]", true))
		assert.Equal(t, []interface{}{1, 3}, p.Document()["l"])
		assert.ErrorIs(t, p.DeleteProperty("l[5]", true), types.ErrKeyMissing)
	})
}

func TestGetValue(t *testing.T) {
	p, _ := openDoc(t, "a: {b: [x, {c: 1}]}\n")

	got, err := p.GetValue("a.b[1].c")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = p.GetValue("a.missing.c")
	assert.ErrorIs(t, err, types.ErrKeyMissing)

	_, err = p.GetValue("a.b[9]")
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)

	assert.NotContains(t, p.Document()["a"], "missing")
}

func TestEditWritesBackOnSuccess(t *testing.T) {
	fx := testhelper.NewFixture(t)
	path := fx.WriteFile("inputs.yaml", "a:\n  b: [1, 2, 3]\n")

	err := Edit(path, func(p *Patcher) error {
		return p.SetValue("a.b[3]", 4)
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"b": []interface{}{1, 2, 3, 4}},
	}, fx.ReadYAML("inputs.yaml"))
}

func TestEditLeavesFileOnError(t *testing.T) {
	fx := testhelper.NewFixture(t)
	original := "a:\n  b: [1, 2, 3]\n"
	path := fx.WriteFile("inputs.yaml", original)

	err := Edit(path, func(p *Patcher) error {
		if err := p.SetValue("a.c", "partial"); err != nil {
			return err
		}
		return p.SetValue("a.b[5]", 9)
	})
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
	fx.AssertFileContent("inputs.yaml", original)
}

func TestEditLeavesFileOnPanic(t *testing.T) {
	fx := testhelper.NewFixture(t)
	original := "a: 1\n"
	path := fx.WriteFile("inputs.yaml", original)

	assert.Panics(t, func() {
		_ = Edit(path, func(p *Patcher) error {
			_ = p.SetValue("a", 2)
			panic("boom")
		})
	})
	fx.AssertFileContent("inputs.yaml", original)
}

func TestClose(t *testing.T) {
	t.Run("error skips write-back and is returned", func(t *testing.T) {
		p, fx := openDoc(t, "a: 1\n")
		require.NoError(t, p.SetValue("a", 2))

		editErr := errors.New("step failed")
		assert.Equal(t, editErr, p.Close(editErr))
		fx.AssertFileContent("doc.yaml", "a: 1\n")
	})

	t.Run("second close fails", func(t *testing.T) {
		p, _ := openDoc(t, "a: 1\n")

		require.NoError(t, p.Close(nil))
		assert.ErrorIs(t, p.Close(nil), ErrClosed)
	})

	t.Run("file mode is preserved", func(t *testing.T) {
		p, fx := openDoc(t, "a: 1\n")
		require.NoError(t, os.Chmod(p.Path(), 0600))

		p2, err := Open(p.Path())
		require.NoError(t, err)
		require.NoError(t, p2.Close(nil))
		fx.AssertFileMode("doc.yaml", 0600)
	})
}

func TestRoundTripWithoutMutations(t *testing.T) {
	content := "name: manager\nports: [22, 80]\nnested:\n  enabled: true\n  ratio: 0.5\n  tags: {env: test}\n  empty: null\n"

	for _, flow := range []bool{true, false} {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("doc.yaml", content)
		before := fx.ReadYAML("doc.yaml")

		require.NoError(t, Edit(path, func(p *Patcher) error { return nil }, WithFlowStyle(flow)))
		assert.Equal(t, before, fx.ReadYAML("doc.yaml"))
	}
}

func TestRoundTripKeepsTimestampsAndTypedKeys(t *testing.T) {
	content := "1: a\ntrue: on-key\nwhen: 2001-12-14\nat: 2001-12-14T21:59:43.1Z\nquoted: '1'\nnested: {2: b}\n"
	before, _, err := decodeDocument([]byte(content))
	require.NoError(t, err)

	for _, flow := range []bool{true, false} {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("doc.yaml", content)

		require.NoError(t, Edit(path, func(p *Patcher) error { return nil }, WithFlowStyle(flow)))

		out := fx.ReadFile("doc.yaml")
		assert.Contains(t, out, "when: 2001-12-14")
		assert.NotContains(t, out, "'2001-12-14")

		after, _, err := decodeDocument([]byte(out))
		require.NoError(t, err)
		assert.Equal(t, before, after)

		var raw map[interface{}]interface{}
		require.NoError(t, yaml.Unmarshal([]byte(out), &raw))
		assert.Equal(t, "a", raw[1])
		assert.Equal(t, "on-key", raw[true])
		assert.Equal(t, "1", raw["quoted"])
	}
}

func TestTypedKeysSurviveEdits(t *testing.T) {
	fx := testhelper.NewFixture(t)
	path := fx.WriteFile("doc.yaml", "ports: {22: ssh}\n")

	require.NoError(t, Edit(path, func(p *Patcher) error {
		return p.SetValue("ports.80", "http")
	}))

	var raw map[string]map[interface{}]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(fx.ReadFile("doc.yaml")), &raw))
	assert.Equal(t, "ssh", raw["ports"][22])
	assert.Equal(t, "http", raw["ports"]["80"])
}

func TestOutputStyles(t *testing.T) {
	content := "a:\n  b: [1, 2, 3]\n"

	t.Run("flow style by default", func(t *testing.T) {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("doc.yaml", content)

		require.NoError(t, Edit(path, func(p *Patcher) error { return nil }))
		out := fx.ReadFile("doc.yaml")
		assert.True(t, strings.HasPrefix(out, "{"), "expected flow mapping, got %q", out)
		assert.Contains(t, out, "[1, 2, 3]")
	})

	t.Run("block style", func(t *testing.T) {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("doc.yaml", content)

		require.NoError(t, Edit(path, func(p *Patcher) error { return nil }, WithFlowStyle(false)))
		out := fx.ReadFile("doc.yaml")
		assert.True(t, strings.HasPrefix(out, "a:\n"), "expected block mapping, got %q", out)
		assert.Contains(t, out, "- 1\n")
	})

	t.Run("json", func(t *testing.T) {
		fx := testhelper.NewFixture(t)
		path := fx.WriteFile("doc.yaml", content)

		require.NoError(t, Edit(path, func(p *Patcher) error {
			return p.SetValue("a.c", "x")
		}, WithJSON()))

		out := fx.ReadFile("doc.yaml")
		assert.Equal(t, `{"a":{"b":[1,2,3],"c":"x"}}`, out)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	})
}
