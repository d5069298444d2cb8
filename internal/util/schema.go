package util

import (
	"bytes"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError reports a document that does not conform to its schema.
type ValidationError struct {
	Schema  string `json:"schema"`  // Name of the schema that was applied
	Message string `json:"message"` // Human-readable validator output
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for schema '%s': %s", e.Schema, e.Message)
}

// SchemaFor reflects a JSON schema for T with every sub-schema inlined and
// without $schema/$id, the shape structured output providers expect.
// Fields without omitempty are required and additional properties are
// rejected.
func SchemaFor[T any]() (map[string]any, error) {
	reflector := &invopop.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result, nil
}

// Validator validates JSON documents against one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewValidator compiles schema. Name is used as the resource location and in
// error messages.
func NewValidator(name string, schema map[string]any) (*Validator, error) {
	// Round-trip through the validator's own decoder so numbers are typed the
	// way the compiler expects.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	location := name + ".json"
	if err := c.AddResource(location, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(location)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{name: name, schema: compiled}, nil
}

// ValidateJSON checks that data is a JSON document conforming to the schema.
func (v *Validator) ValidateJSON(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Schema: v.name, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := v.schema.Validate(inst); err != nil {
		return &ValidationError{Schema: v.name, Message: err.Error()}
	}
	return nil
}
