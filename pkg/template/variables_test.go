package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/deploytest/pkg/types"
)

func TestProcessVariables(t *testing.T) {
	suite := map[string]interface{}{
		"variables": map[string]interface{}{
			"resources_prefix": "ci-",
			"image":            "ubuntu",
		},
	}
	unprocessed := map[string]interface{}{
		"keypair_name": "{{ resources_prefix }}manager-key",
		"image_id":     "{{image}}-22.04",
		"flavor":       "m1.small",
		"agents":       3,
		"use_existing": false,
		"networks":     []interface{}{"{{ not_rendered }}"},
	}

	result, err := ProcessVariables(suite, unprocessed)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"keypair_name": "ci-manager-key",
		"image_id":     "ubuntu-22.04",
		"flavor":       "m1.small",
		"agents":       3,
		"use_existing": false,
		"networks":     []interface{}{"{{ not_rendered }}"},
	}, result)
}

func TestProcessVariablesWithoutSuiteVariables(t *testing.T) {
	for _, suite := range []map[string]interface{}{
		nil,
		{},
		{"variables": "not a mapping"},
	} {
		result, err := ProcessVariables(suite, map[string]interface{}{"name": "x{{ undefined }}y"})
		require.NoError(t, err)
		assert.Equal(t, "xy", result["name"])
	}
}

func TestProcessVariablesInvalidTemplate(t *testing.T) {
	_, err := ProcessVariables(nil, map[string]interface{}{"broken": "{{ .x "})
	assert.ErrorIs(t, err, types.ErrTemplateFailed)
	assert.Contains(t, err.Error(), `variable "broken"`)
}
