// Package types holds the error kinds and value helpers shared by the
// deploytest packages.
package types

// Document is a decoded YAML or JSON document: nested mappings, sequences
// and scalars.
type Document = map[string]interface{}

// Variables are the values made available to template rendering.
type Variables = map[string]interface{}

// OutputFormat selects how an edited document is written back.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
)

// String returns the string representation of the format
func (f OutputFormat) String() string {
	return string(f)
}

// IsValid checks if the format is known
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}
