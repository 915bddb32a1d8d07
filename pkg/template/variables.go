package template

import (
	"fmt"

	"github.com/liliang-cn/deploytest/pkg/logging"
	"github.com/liliang-cn/deploytest/pkg/types"
)

// SuiteVariablesKey is the suite configuration key holding template variables.
const SuiteVariablesKey = "variables"

// SuiteVariables returns suite["variables"], or an empty map when it is
// missing or not a mapping.
func SuiteVariables(suite map[string]interface{}) types.Variables {
	if vars, ok := types.NormalizeValue(suite[SuiteVariablesKey]).(map[string]interface{}); ok {
		return vars
	}
	return types.Variables{}
}

// ProcessVariables renders every string value of unprocessed as a Jinja2
// template against the suite variables. Non-string values are copied as is.
func ProcessVariables(suite, unprocessed map[string]interface{}) (map[string]interface{}, error) {
	return DefaultTemplateEngine.ProcessVariables(suite, unprocessed)
}

// ProcessVariables is the engine-bound form of the package function.
func (e *Engine) ProcessVariables(suite, unprocessed map[string]interface{}) (map[string]interface{}, error) {
	vars := SuiteVariables(suite)
	result := make(map[string]interface{}, len(unprocessed))

	for key, value := range unprocessed {
		str, ok := value.(string)
		if !ok {
			result[key] = value
			continue
		}

		rendered, err := e.RenderJinja(str, vars)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", key, err)
		}
		result[key] = rendered
	}

	logger := logging.GetLogger("template")
	logger.Debug().Int("values", len(result)).Int("variables", len(vars)).Msg("Processed suite variables")
	return result, nil
}
