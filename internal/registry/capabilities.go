package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"homelink/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const capabilitySchemaV1 = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"components": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"actions": {"type": "array", "items": {"type": "string", "minLength": 1}},
					"is_output": {"type": "boolean"},
					"has_input_action": {"type": "boolean"}
				},
				"required": ["name"],
				"additionalProperties": false
			}
		}
	},
	"required": ["components"],
	"additionalProperties": false
}`

var capabilitySchema = mustCompile("capabilities-v1.json", capabilitySchemaV1)

func mustCompile(name, doc string) *jsonschema.Schema {
	var schemaMap any
	if err := json.Unmarshal([]byte(doc), &schemaMap); err != nil {
		panic(fmt.Sprintf("registry: bad schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, schemaMap); err != nil {
		panic(fmt.Sprintf("registry: add schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("registry: compile schema %s: %v", name, err))
	}
	return s
}

// ParseCapabilities validates a raw capability document and decodes it.
// An empty or null document yields an empty schema.
func ParseCapabilities(raw json.RawMessage) (models.CapabilitySchema, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return models.CapabilitySchema{Version: models.CapabilitySchemaVersion, Components: []models.Component{}}, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.CapabilitySchema{}, fmt.Errorf("%w: capabilities are not valid JSON: %v", models.ErrValidation, err)
	}
	if err := capabilitySchema.Validate(doc); err != nil {
		return models.CapabilitySchema{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	var schema models.CapabilitySchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return models.CapabilitySchema{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return normalize(schema)
}

// CheckCapabilities validates an already decoded schema
func CheckCapabilities(schema models.CapabilitySchema) (models.CapabilitySchema, error) {
	components := make([]models.Component, len(schema.Components))
	for i, c := range schema.Components {
		if c.Actions == nil {
			c.Actions = []string{}
		}
		components[i] = c
	}
	schema.Components = components

	raw, err := json.Marshal(schema)
	if err != nil {
		return models.CapabilitySchema{}, err
	}
	return ParseCapabilities(raw)
}

func normalize(schema models.CapabilitySchema) (models.CapabilitySchema, error) {
	if schema.Version == 0 {
		schema.Version = models.CapabilitySchemaVersion
	}
	if schema.Version > models.CapabilitySchemaVersion {
		return models.CapabilitySchema{}, fmt.Errorf("%w: unsupported capability version %d", models.ErrValidation, schema.Version)
	}
	if schema.Components == nil {
		schema.Components = []models.Component{}
	}
	seen := make(map[string]bool, len(schema.Components))
	for i := range schema.Components {
		c := &schema.Components[i]
		if seen[c.Name] {
			return models.CapabilitySchema{}, fmt.Errorf("%w: duplicate component %q", models.ErrValidation, c.Name)
		}
		seen[c.Name] = true
		if c.Actions == nil {
			c.Actions = []string{}
		}
	}
	return schema, nil
}
