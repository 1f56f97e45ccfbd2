package content

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// bankSchema is the JSON Schema every bank file must satisfy before
// decoding. Semantic rules beyond its reach live in
// TestDefinition.validate.
const bankSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "duration_seconds", "passing_threshold", "questions"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "duration_seconds": {"type": "integer", "minimum": 1},
    "passing_threshold": {"type": "integer", "minimum": 0, "maximum": 100},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "section", "prompt", "options", "correct"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "section": {"type": "string", "minLength": 1},
          "prompt": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 2,
            "items": {"type": "string"}
          },
          "correct": {"type": "string"},
          "explanation": {"type": "string"}
        }
      }
    }
  }
}`

var compiledBankSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bank.schema.json", strings.NewReader(bankSchema)); err != nil {
		panic(fmt.Sprintf("content: add bank schema: %v", err))
	}
	schema, err := compiler.Compile("bank.schema.json")
	if err != nil {
		panic(fmt.Sprintf("content: compile bank schema: %v", err))
	}
	return schema
}

func validateSchema(doc interface{}) error {
	if err := compiledBankSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
