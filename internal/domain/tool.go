package domain

import "maps"

// Tool is the declarative descriptor of a callable capability exposed by the
// protocol server. The descriptor is metadata only; the handler that executes
// the tool is registered alongside it.
type Tool struct {
	// Name MUST be unique within the server registry.
	Name string `json:"name"`

	// Description provides a natural language explanation of what the tool does.
	// This is crucial for the decision-maker to understand when to use the tool.
	Description string `json:"description"`

	// InputSchema defines the structure of the arguments the tool accepts.
	// Uses JSON Schema format.
	InputSchema JSONSchemaProps `json:"inputSchema"`
}

// JSONSchemaProps represents the properties of a JSON schema used for tool
// input definitions. This is a simplified subset of JSON Schema.
type JSONSchemaProps struct {
	Type        string                     `json:"type" yaml:"type"`                                   // "object", "string", "number", "integer", "boolean", "array"
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"` //
	Properties  map[string]JSONSchemaProps `json:"properties,omitempty" yaml:"properties,omitempty"`   // For type "object"
	Required    []string                   `json:"required,omitempty" yaml:"required,omitempty"`       // For type "object"
	Items       *JSONSchemaProps           `json:"items,omitempty" yaml:"items,omitempty"`             // For type "array"
	Format      string                     `json:"format,omitempty" yaml:"format,omitempty"`           // e.g., "date-time", "email"
	Enum        []interface{}              `json:"enum,omitempty" yaml:"enum,omitempty"`               // Possible values
}

// Clone returns a deep copy of the tool so registry snapshots never share
// maps or slices with the registered descriptor.
func (t Tool) Clone() Tool {
	t.InputSchema = t.InputSchema.Clone()
	return t
}

// Clone returns a deep copy of the schema.
func (s JSONSchemaProps) Clone() JSONSchemaProps {
	out := s
	if s.Properties != nil {
		out.Properties = make(map[string]JSONSchemaProps, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.Clone()
		}
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		items := s.Items.Clone()
		out.Items = &items
	}
	if s.Enum != nil {
		out.Enum = append([]interface{}(nil), s.Enum...)
	}
	return out
}

// ObjectSchema builds an object schema from properties and required names.
func ObjectSchema(properties map[string]JSONSchemaProps, required ...string) JSONSchemaProps {
	return JSONSchemaProps{
		Type:       "object",
		Properties: maps.Clone(properties),
		Required:   required,
	}
}

// StringProp builds a string property.
func StringProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "string", Description: description}
}

// NumberProp builds a number property.
func NumberProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "number", Description: description}
}

// IntegerProp builds an integer property.
func IntegerProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "integer", Description: description}
}

// BooleanProp builds a boolean property.
func BooleanProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "boolean", Description: description}
}
