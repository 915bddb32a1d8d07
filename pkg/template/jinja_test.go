package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/deploytest/pkg/types"
)

func TestRenderJinja(t *testing.T) {
	engine := NewEngine()
	vars := map[string]interface{}{
		"prefix":  "sys-test-",
		"manager": map[string]interface{}{"ip": "10.0.0.5"},
		"hosts":   []interface{}{"a", "b"},
		"enabled": true,
		"port":    22,
		"env":     "prod",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"variable", "{{ prefix }}manager", "sys-test-manager"},
		{"nested", "ssh://{{ manager.ip }}", "ssh://10.0.0.5"},
		{"undefined renders empty", "[{{ nothing }}]", "[]"},
		{"default filter", "{{ key_name | default('id_rsa') }}", "id_rsa"},
		{"upper filter", "{{ prefix | upper }}", "SYS-TEST-"},
		{"join filter", "{{ hosts | join(',') }}", "a,b"},
		{"arithmetic", "{{ port + 1 }}", "23"},
		{"indexing", "{{ hosts[1] }}", "b"},
		{"concatenation", "{{ prefix ~ 'agent' }}", "sys-test-agent"},
		{"set", "{% set name = prefix ~ 'db' %}{{ name }}", "sys-test-db"},
		{"conditional", "{% if enabled %}yes{% endif %}", "yes"},
		{"equality", "{% if env == 'prod' %}p{% else %}d{% endif %}", "p"},
		{"loop", "{% for h in hosts %}<{{ h }}>{% endfor %}", "<a><b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.RenderJinja(tt.template, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderJinjaInvalidTemplate(t *testing.T) {
	engine := NewEngine()

	for _, tmpl := range []string{"{{ name ", "{% if x %}unclosed", "{% bogus %}"} {
		_, err := engine.RenderJinja(tmpl, map[string]interface{}{"x": true})
		assert.ErrorIs(t, err, types.ErrTemplateFailed, tmpl)
	}
}
