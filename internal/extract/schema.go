package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Genders accepted from the extractor; reviewers may additionally pick "Other".
var (
	ExtractedGenders = []string{"", "Male", "Female"}
	EditedGenders    = []string{"", "Male", "Female", "Other"}
)

// FieldsJSONSchema returns a JSON-Schema (draft 2020-12 subset) for the six
// identity fields. Every key is required; empty strings mean "not found".
func FieldsJSONSchema(allowedGenders []string) map[string]any {
	props := map[string]any{
		"fullName":       map[string]any{"type": "string"},
		"dateOfBirth":    map[string]any{"type": "string", "pattern": `^(\d{4}-\d{2}-\d{2})?$`},
		"aadharNumber":   map[string]any{"type": "string", "pattern": `^(\d{4} \d{4} \d{4})?$`},
		"gender":         map[string]any{"type": "string", "enum": allowedGenders},
		"address":        map[string]any{"type": "string"},
		"documentNumber": map[string]any{"type": "string", "pattern": `^[A-Z0-9]*$`},
	}
	required := []string{"fullName", "dateOfBirth", "aadharNumber", "gender", "address", "documentNumber"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// CompileSchema compiles schemaMap once for repeated validation.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON validates data against a compiled schema.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
