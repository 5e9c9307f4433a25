package routing

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolRegistry holds the tools the classifier may route to, each with
// a compiled JSON schema for its parameters. Schemas are compiled once
// at construction so Validate is cheap on the request path.
type ToolRegistry struct {
	schemas map[string]*jsonschema.Schema
}

// builtinTools is the parameter schema for each routable tool.
var builtinTools = map[string]map[string]any{
	"web_search": {
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "minLength": 1},
			"max_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		},
		"required":             []any{"query"},
		"additionalProperties": false,
	},
	"calculator": {
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []any{"expression"},
		"additionalProperties": false,
	},
}

// NewToolRegistry compiles the builtin tool schemas.
func NewToolRegistry() (*ToolRegistry, error) {
	tr := &ToolRegistry{schemas: make(map[string]*jsonschema.Schema, len(builtinTools))}
	for name, schemaMap := range builtinTools {
		schema, err := compileSchema(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		tr.schemas[name] = schema
	}
	return tr, nil
}

// Known reports whether name is a registered tool.
func (tr *ToolRegistry) Known(name string) bool {
	_, ok := tr.schemas[name]
	return ok
}

// Validate checks params against the tool's parameter schema.
func (tr *ToolRegistry) Validate(name string, params map[string]any) error {
	schema, ok := tr.schemas[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}

	// Round-trip through JSON so the validator sees the same value
	// shapes (float64 numbers, plain maps) it would from the wire.
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to serialize params: %w", err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("params for tool %q rejected: %w", name, err)
	}
	return nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}

	var schemaValue any
	if err := json.Unmarshal(schemaJSON, &schemaValue); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaValue); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	return compiler.Compile("schema.json")
}
