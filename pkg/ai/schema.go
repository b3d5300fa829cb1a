package ai

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"
)

type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"
	TypeString SchemaType = "string"
	TypeNumber SchemaType = "number"
)

// Schema is the provider-neutral subset of JSON Schema the generators need.
// Zero MinItems/MaxItems mean unbounded; nil Minimum/Maximum mean unbounded.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	MinItems    int
	MaxItems    int
	Minimum     *float64
	Maximum     *float64
}

// Bound is a convenience for Minimum/Maximum literals.
func Bound(v float64) *float64 { return &v }

// JSONSchema renders s as a standard JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	return s.render(false)
}

// openAPI renders the uppercase-typed variant Gemini's REST API expects.
func (s *Schema) openAPI() map[string]any {
	return s.render(true)
}

func (s *Schema) render(upperTypes bool) map[string]any {
	if s == nil {
		return nil
	}
	typ := string(s.Type)
	if upperTypes {
		typ = strings.ToUpper(typ)
	}
	out := map[string]any{"type": typ}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.render(upperTypes)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.render(upperTypes)
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.MinItems > 0 {
		out["minItems"] = s.MinItems
	}
	if s.MaxItems > 0 {
		out["maxItems"] = s.MaxItems
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	return out
}

// genaiSchema converts s for the google.golang.org/genai SDK.
func (s *Schema) genaiSchema() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       s.Items.genaiSchema(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.genaiSchema()
		}
	}
	if s.MinItems > 0 {
		n := int64(s.MinItems)
		out.MinItems = &n
	}
	if s.MaxItems > 0 {
		n := int64(s.MaxItems)
		out.MaxItems = &n
	}
	return out
}

// schemaInstruction appends the schema to a system prompt for providers
// without native structured output.
func schemaInstruction(systemPrompt string, schema *Schema) string {
	if schema == nil {
		return systemPrompt
	}
	raw, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemPrompt))
	b.WriteString("\n\nRespond with one JSON object and nothing else. It must validate against this JSON Schema:\n")
	b.Write(raw)
	return b.String()
}
