// Package template renders suite variables into configuration values.
//
// Render takes Go text/template documents with the engine's function map.
// RenderJinja takes Jinja2 (`{{ name }}`, `{{ server.port | default(22) }}`,
// `{% set %}`, arithmetic, indexing) and renders it with gonja.
package template

import (
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// Engine renders templates with a shared function map
type Engine struct {
	mu        sync.RWMutex
	functions template.FuncMap
	strict    bool
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	engine := &Engine{
		functions: make(template.FuncMap),
	}
	engine.registerBuiltinFunctions()
	return engine
}

// SetStrict makes references to undefined variables fail instead of
// rendering as an empty string.
func (e *Engine) SetStrict(strict bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strict = strict
}

// Render processes a Go template string with the given variables
func (e *Engine) Render(templateStr string, vars map[string]interface{}) (string, error) {
	tmpl, err := e.parse("inline", templateStr)
	if err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to parse template", err)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, vars); err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to execute template", err)
	}
	return result.String(), nil
}


// RenderFile processes a template file with the given variables
func (e *Engine) RenderFile(path string, vars map[string]interface{}) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewTemplateError(path, 0, 0, "failed to read template file", err)
	}

	result, err := e.Render(string(content), vars)
	if err != nil {
		if templateErr, ok := err.(*types.TemplateError); ok {
			templateErr.Template = path
		}
		return "", err
	}
	return result, nil
}

// AddFunction adds a custom function to the template engine
func (e *Engine) AddFunction(name string, fn interface{}) error {
	if name == "" {
		return types.NewValidationError("name", name, "function name cannot be empty")
	}
	if fn == nil {
		return types.NewValidationError("fn", fn, "function cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.functions[name] = fn
	return nil
}

// ValidateTemplate validates that a template string is syntactically correct
func (e *Engine) ValidateTemplate(templateStr string) error {
	if _, err := e.parse("validation", templateStr); err != nil {
		return types.NewTemplateError("validation", 0, 0, "template validation failed", err)
	}
	return nil
}

// ListFunctions returns the sorted names of all available template functions
func (e *Engine) ListFunctions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	functions := make([]string, 0, len(e.functions))
	for name := range e.functions {
		functions = append(functions, name)
	}
	sort.Strings(functions)
	return functions
}

// Clone creates a copy of the template engine with all functions
func (e *Engine) Clone() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()

	clone := &Engine{
		functions: make(template.FuncMap, len(e.functions)),
		strict:    e.strict,
	}
	for k, v := range e.functions {
		clone.functions[k] = v
	}
	return clone
}

func (e *Engine) parse(name, templateStr string) (*template.Template, error) {
	e.mu.RLock()
	functions := make(template.FuncMap, len(e.functions))
	for k, v := range e.functions {
		functions[k] = v
	}
	missingKey := "missingkey=default"
	if e.strict {
		missingKey = "missingkey=error"
	}
	e.mu.RUnlock()

	return template.New(name).
		Option(missingKey).
		Funcs(functions).
		Parse(templateStr)
}

// DefaultTemplateEngine provides a default template engine instance
var DefaultTemplateEngine = NewEngine()
