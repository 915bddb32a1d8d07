package types

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrParse            = errors.New("invalid structured data")
	ErrPath             = errors.New("illegal path")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrKeyMissing       = errors.New("key missing")
	ErrUnsupportedType  = errors.New("unsupported operand type")
	ErrFileNotFound     = errors.New("file not found")
	ErrTemplateFailed   = errors.New("template rendering failed")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// PatchError represents a failed document edit
type PatchError struct {
	Op      string
	Path    string
	Kind    error
	Message string
}

func (e *PatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %q: %v: %s", e.Op, e.Path, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Kind)
}

func (e *PatchError) Unwrap() error {
	return e.Kind
}

// ParseError represents a document that could not be decoded
type ParseError struct {
	Source string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, ErrParse)
}

// Unwrap exposes both the parse kind and the decoder error.
func (e *ParseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Cause}
}

// TemplateError represents a template-related error
type TemplateError struct {
	Template string
	Line     int
	Column   int
	Message  string
	Cause    error
}

func (e *TemplateError) Error() string {
	location := e.Template
	if e.Line > 0 {
		if e.Column > 0 {
			location = fmt.Sprintf("%s:%d:%d", location, e.Line, e.Column)
		} else {
			location = fmt.Sprintf("%s:%d", location, e.Line)
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("template %s: %s: %v", location, e.Message, e.Cause)
	}
	return fmt.Sprintf("template %s: %s", location, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Is reports every template error as ErrTemplateFailed.
func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplateFailed
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// NewPatchError creates a new patch error
func NewPatchError(op, path string, kind error, message string) *PatchError {
	return &PatchError{
		Op:      op,
		Path:    path,
		Kind:    kind,
		Message: message,
	}
}

// NewParseError creates a new parse error
func NewParseError(source string, cause error) *ParseError {
	return &ParseError{
		Source: source,
		Cause:  cause,
	}
}

// NewTemplateError creates a new template error
func NewTemplateError(template string, line, column int, message string, cause error) *TemplateError {
	return &TemplateError{
		Template: template,
		Line:     line,
		Column:   column,
		Message:  message,
		Cause:    cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
