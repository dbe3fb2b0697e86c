package canonical

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// canonicalSchema is the JSON schema for the persisted canonical document.
// Stored rows are validated against it before write so a serialization
// regression cannot silently corrupt the corpus.
const canonicalSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "logsource", "detection"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "logsource": {
      "type": "object",
      "required": ["product", "category"],
      "additionalProperties": false,
      "properties": {
        "product": {"type": "string"},
        "category": {"type": "string"}
      }
    },
    "detection": {
      "type": "object",
      "required": ["atoms", "logic"],
      "additionalProperties": false,
      "properties": {
        "atoms": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["field", "ops", "polarity", "value", "value_type"],
            "additionalProperties": false,
            "properties": {
              "field": {"type": "string"},
              "ops": {"type": "array", "items": {"type": "string"}},
              "polarity": {"enum": ["positive", "negative"]},
              "value": {"type": "string"},
              "value_type": {"enum": ["string", "int", "float", "bool"]}
            }
          }
        },
        "logic": {
          "anyOf": [
            {"type": "null"},
            {"$ref": "#/definitions/logicNode"}
          ]
        }
      }
    }
  },
  "definitions": {
    "logicNode": {
      "type": "object",
      "required": ["op"],
      "properties": {
        "op": {"enum": ["atom", "and", "or", "not"]},
        "index": {"type": "integer", "minimum": 0},
        "child": {"$ref": "#/definitions/logicNode"},
        "children": {
          "type": "array",
          "minItems": 1,
          "items": {"$ref": "#/definitions/logicNode"}
        }
      }
    }
  }
}`

var compiledSchema = gojsonschema.NewStringLoader(canonicalSchema)

// ValidateDocument checks a serialized canonical document against the schema.
// Returns a single error listing every violation.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("canonical document violates schema: %s", strings.Join(problems, "; "))
}
