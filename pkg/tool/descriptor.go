package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/knocktoolkit/pkg/knock"
)

// DefaultEnvironment is used when a Config leaves Environment empty
const DefaultEnvironment = "development"

// Handler executes a bound tool against decoded arguments
type Handler func(ctx context.Context, input map[string]interface{}) (interface{}, error)

// Factory builds a handler from a Knock client and the toolkit configuration
type Factory func(c *knock.Client, cfg Config) Handler

// Config carries the defaults handlers fall back on when an argument is omitted
type Config struct {
	UserID       string `json:"user_id,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	Environment  string `json:"environment,omitempty"`
	ServiceToken string `json:"-"`
}

// EnvironmentOrDefault returns the configured environment or "development"
func (c Config) EnvironmentOrDefault() string {
	if c.Environment == "" {
		return DefaultEnvironment
	}
	return c.Environment
}

// Parameter describes one named argument of a tool
type Parameter struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Required    bool                   `json:"required"`
	Default     interface{}            `json:"default,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       map[string]interface{} `json:"items,omitempty"`
	// Schema replaces the generated property schema in Schema() output.
	// Validation only checks the declared Type for such parameters.
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// Descriptor is the static definition of a Knock tool
type Descriptor struct {
	Method      string      `json:"method"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Execute     Factory     `json:"-"`
}

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Check validates the descriptor metadata
func (d Descriptor) Check() error {
	if d.Method == "" {
		return fmt.Errorf("%w: method cannot be empty", ErrInvalidDescriptor)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: description cannot be empty for %s", ErrInvalidDescriptor, d.Method)
	}
	if d.Execute == nil {
		return fmt.Errorf("%w: execute cannot be nil for %s", ErrInvalidDescriptor, d.Method)
	}

	seen := make(map[string]bool, len(d.Parameters))
	for _, param := range d.Parameters {
		if param.Name == "" {
			return fmt.Errorf("%w: parameter name cannot be empty for %s", ErrInvalidDescriptor, d.Method)
		}
		if seen[param.Name] {
			return fmt.Errorf("%w: duplicate parameter %s for %s", ErrInvalidDescriptor, param.Name, d.Method)
		}
		seen[param.Name] = true
		if !validTypes[param.Type] {
			return fmt.Errorf("%w: invalid parameter type %q for %s.%s", ErrInvalidDescriptor, param.Type, d.Method, param.Name)
		}
	}

	return nil
}

// DisplayName returns Name, or Method when no name was given
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Method
}

// FullDescription renders the description with a parameter table appended
func (d Descriptor) FullDescription() string {
	if len(d.Parameters) == 0 {
		return d.Description
	}

	var b strings.Builder
	b.WriteString(d.Description)
	b.WriteString("\n\n## Parameters\n\n")
	b.WriteString("| Name | Type | Required | Description |\n")
	b.WriteString("|------|------|----------|-------------|\n")
	for _, param := range d.Parameters {
		required := "no"
		if param.Required {
			required = "yes"
		}
		desc := strings.ReplaceAll(param.Description, "|", "\\|")
		desc = strings.ReplaceAll(desc, "\n", " ")
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", param.Name, param.Type, required, desc)
	}

	return strings.TrimRight(b.String(), "\n")
}

// Schema returns the JSON Schema object describing the tool input
func (d Descriptor) Schema() map[string]interface{} {
	return d.buildSchema(false)
}

// validationSchema is Schema with parameter overrides reduced to their type
func (d Descriptor) validationSchema() map[string]interface{} {
	return d.buildSchema(true)
}

func (d Descriptor) buildSchema(forValidation bool) map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters))
	required := []string{}

	for _, param := range d.Parameters {
		var paramSchema map[string]interface{}
		if param.Schema != nil && !forValidation {
			paramSchema = copyMap(param.Schema)
			if _, ok := paramSchema["description"]; !ok && param.Description != "" {
				paramSchema["description"] = param.Description
			}
		} else {
			paramSchema = map[string]interface{}{
				"type": param.Type,
			}
			if param.Description != "" {
				paramSchema["description"] = param.Description
			}
			if param.Default != nil {
				paramSchema["default"] = param.Default
			}
			if len(param.Enum) > 0 && param.Schema == nil {
				paramSchema["enum"] = param.Enum
			}
			if param.Items != nil && param.Schema == nil {
				paramSchema["items"] = param.Items
			}
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
