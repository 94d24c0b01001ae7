// internal/modelzoo/registry.go
package modelzoo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// registrySchema constrains user-supplied model registries so a malformed
// entry is rejected before it can poison a benchmark sweep.
const registrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["models"],
  "properties": {
    "models": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "inputNames", "opsetVersion", "family"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "inputNames": {
            "type": "array",
            "items": {"type": "string", "minLength": 1},
            "minItems": 1,
            "maxItems": 3
          },
          "opsetVersion": {"type": "integer", "minimum": 7},
          "family": {"type": "string", "enum": ["bert", "gpt2"]},
          "numHeads": {"type": "integer", "minimum": 1},
          "hiddenSize": {"type": "integer", "minimum": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

type registryFile struct {
	Models []Model `json:"models"`
}

// LoadRegistry validates the JSON registry at path against the registry
// schema and merges its models into the catalog. User entries override
// builtins of the same name.
func (c *Catalog) LoadRegistry(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model registry %q: %w", path, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(registrySchema)
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate model registry %q: %w", path, err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("model registry %q is invalid: %s (%d problems)", path, first, len(result.Errors()))
	}

	var registry registryFile
	if err := json.Unmarshal(data, &registry); err != nil {
		return fmt.Errorf("decode model registry %q: %w", path, err)
	}
	for _, model := range registry.Models {
		c.add(model)
	}
	return nil
}
