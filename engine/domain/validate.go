package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// payloadSchema mirrors the request model the form builder sends.
var payloadSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{"sections"},
	"properties": map[string]any{
		"templateName": map[string]any{"type": "string"},
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"sectionName", "inputFields"},
				"properties": map[string]any{
					"sectionName": map[string]any{"type": "string"},
					"inputFields": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"fields"},
							"properties": map[string]any{
								"fieldsHeading": map[string]any{"type": "string"},
								"fields": map[string]any{
									"type":  "array",
									"items": fieldSchema,
								},
							},
						},
					},
				},
			},
		},
	},
}

var fieldSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"inputName": map[string]any{"type": "string"},
		"dataType":  map[string]any{"type": "string"},
		"fieldType": map[string]any{"type": "string"},
		"prompt":    map[string]any{"type": []string{"string", "null"}},
		"options": map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "string"},
		},
		"helperText": map[string]any{
			"anyOf": []any{
				map[string]any{"type": "string"},
				map[string]any{"type": "null"},
				map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(payloadSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("eventschema.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("eventschema.json")
	})
	return compiled, compileErr
}

// ValidateSchemaJSON checks a raw schema payload against the form model and
// decodes it. Failures wrap ErrInvalidSchema.
func ValidateSchemaJSON(data []byte) (*EventSchema, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, NewValidationError("schema", truncate(string(data), 80), fmt.Errorf("%w: %v", ErrInvalidSchema, err))
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(v); err != nil {
		field, msg := leafCause(err)
		return nil, NewValidationError(field, msg, ErrInvalidSchema)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, NewValidationError("schema", err.Error(), ErrInvalidSchema)
	}
	return s, nil
}

// leafCause digs out the innermost failing location.
func leafCause(err error) (string, string) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return "schema", err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc, ve.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
