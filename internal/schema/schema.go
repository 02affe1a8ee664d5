// Package schema holds the JSON Schemas of reference records and extraction
// payloads and validates documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile compiles a schema given as a generic map.
func Compile(name string, schemaMap map[string]any) (*Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompile is Compile for the built-in schemas; it panics on error.
func MustCompile(name string, schemaMap map[string]any) *Schema {
	s, err := Compile(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes decodes data and validates it.
func (s *Schema) ValidateBytes(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return s.Validate(v)
}

// Validate validates an already decoded document.
func (s *Schema) Validate(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match %s: %w", s.name, err)
	}
	return nil
}

func valueProp() map[string]any {
	return map[string]any{"type": []any{"string", "number", "null"}}
}

func fieldProps() map[string]any {
	props := make(map[string]any, len(constants.AllFields()))
	for _, f := range constants.AllFields() {
		props[string(f)] = valueProp()
	}
	return props
}

// BuildReferenceSchema describes one reference record: every schema field must be
// present, absent values are written as null. Unknown keys are allowed.
func BuildReferenceSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": fieldProps(),
		"required":   constants.AsStringSlice(),
	}
}

// BuildPayloadSchema describes what an extraction collaborator returns: the
// extracted fields, the raw text they came from, timings in seconds and the page count.
func BuildPayloadSchema() map[string]any {
	seconds := map[string]any{"type": "number", "minimum": 0}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":       "object",
				"properties": fieldProps(),
			},
			"raw_text": map[string]any{"type": "string"},
			"timings": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"extraction": seconds,
					"processing": seconds,
					"total":      seconds,
				},
				"additionalProperties": false,
			},
			"page_count": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []any{"fields"},
	}
}

// Reference returns the compiled reference-record schema.
func Reference() *Schema {
	return MustCompile("reference.json", BuildReferenceSchema())
}

// Payload returns the compiled extraction-payload schema.
func Payload() *Schema {
	return MustCompile("payload.json", BuildPayloadSchema())
}
