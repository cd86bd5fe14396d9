package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Violation describes one argument that does not match the declared schema.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// SchemaValidationError is returned when tool arguments do not match the
// tool's input schema.
type SchemaValidationError struct {
	Tool       string      `json:"tool"`
	Violations []Violation `json:"violations"`
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field == "" {
			parts = append(parts, v.Reason)
			continue
		}
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return fmt.Sprintf("arguments for tool %q do not match its input schema: %s", e.Tool, strings.Join(parts, "; "))
}

// ValidateInput checks args against the tool's input schema.
// A tool without a declared schema type accepts any arguments.
func (t *Tool) ValidateInput(args map[string]interface{}) error {
	if t.InputSchema.Type == "" {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	// VisitJSON expects the generic JSON shapes produced by encoding/json.
	err := t.InputSchema.openAPI().VisitJSON(args, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	verr := &SchemaValidationError{Tool: t.Name}
	collectViolations(err, &verr.Violations)
	sort.SliceStable(verr.Violations, func(i, j int) bool {
		return verr.Violations[i].Field < verr.Violations[j].Field
	})
	return verr
}

func collectViolations(err error, out *[]Violation) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi {
			collectViolations(e, out)
		}
		return
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		*out = append(*out, Violation{
			Field:  strings.Join(schemaErr.JSONPointer(), "."),
			Reason: schemaErr.Reason,
		})
		return
	}
	*out = append(*out, Violation{Reason: err.Error()})
}

// openAPI converts the simplified schema into a kin-openapi schema.
func (s JSONSchemaProps) openAPI() *openapi3.Schema {
	out := &openapi3.Schema{
		Description: s.Description,
		Format:      s.Format,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if s.Type != "" {
		out.Type = &openapi3.Types{s.Type}
	}
	if len(s.Properties) > 0 {
		out.Properties = make(openapi3.Schemas, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = openapi3.NewSchemaRef("", prop.openAPI())
		}
	}
	if s.Items != nil {
		out.Items = openapi3.NewSchemaRef("", s.Items.openAPI())
	}
	return out
}
