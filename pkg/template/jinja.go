package template

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/config"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/nikolalohinski/gonja/v2/loaders"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// Filters added to gonja's built-in set, named as Ansible names them.
var jinjaFilters = map[string]exec.FilterFunction{
	"to_json":    jinjaFilter(func(v interface{}) (interface{}, error) { return toJSON(v) }),
	"from_json":  jinjaFilter(fromJSON),
	"to_yaml":    jinjaFilter(func(v interface{}) (interface{}, error) { return toYAML(v) }),
	"from_yaml":  jinjaFilter(fromYAML),
	"b64encode":  jinjaFilter(func(v interface{}) (interface{}, error) { return b64encode(v), nil }),
	"b64decode":  jinjaFilter(func(v interface{}) (interface{}, error) { return b64decode(v) }),
	"sha256":     jinjaFilter(func(v interface{}) (interface{}, error) { return sha256Hex(v), nil }),
	"expanduser": jinjaFilter(func(v interface{}) (interface{}, error) { return expandUser(types.ConvertToString(v)), nil }),
	"mandatory":  filterMandatory,
}

func init() {
	for name, fn := range jinjaFilters {
		// A built-in filter of the same name is kept.
		_ = gonja.DefaultEnvironment.Filters.Register(name, fn)
	}
}

// RenderJinja renders a Jinja2 template with gonja. Undefined variables
// render as an empty string unless the engine is strict.
func (e *Engine) RenderJinja(templateStr string, vars map[string]interface{}) (string, error) {
	tmpl, err := e.parseJinja(templateStr)
	if err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to parse template", err)
	}

	result, err := tmpl.ExecuteToString(exec.NewContext(vars))
	if err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to execute template", err)
	}
	return result, nil
}

func (e *Engine) parseJinja(source string) (*exec.Template, error) {
	e.mu.RLock()
	strict := e.strict
	e.mu.RUnlock()

	cfg := config.New()
	cfg.StrictUndefined = strict

	loader, err := loaders.NewFileSystemLoader(".")
	if err != nil {
		return nil, err
	}
	rootID := fmt.Sprintf("inline-%x", sha256.Sum256([]byte(source)))
	shifted, err := loaders.NewShiftedLoader(rootID, strings.NewReader(source), loader)
	if err != nil {
		return nil, err
	}
	return exec.NewTemplate(rootID, cfg, shifted, gonja.DefaultEnvironment)
}

// jinjaFilter adapts a codec helper to a gonja filter.
func jinjaFilter(fn func(interface{}) (interface{}, error)) exec.FilterFunction {
	return func(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		if in.IsError() {
			return in
		}
		out, err := fn(in.Interface())
		if err != nil {
			return exec.AsValue(err)
		}
		return exec.AsValue(out)
	}
}

func filterMandatory(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
	if in.IsError() {
		return in
	}
	if in.IsNil() {
		return exec.AsValue(fmt.Errorf("%w: mandatory variable is undefined", types.ErrTemplateFailed))
	}
	return in
}
