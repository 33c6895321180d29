package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

const inboundEventSchemaURL = "inventory-event.json"

// Only the fields this service reads are constrained; everything else the
// inventory service adds is accepted as-is.
const inboundEventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "id": {"type": "string"},
    "host": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "org_id": {"type": ["string", "null"]}
      }
    },
    "platform_metadata": {
      "type": ["object", "null"],
      "properties": {
        "service": {"type": ["string", "null"]},
        "request_id": {"type": ["string", "null"]},
        "b64_identity": {"type": ["string", "null"]},
        "url": {"type": ["string", "null"]}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func inboundSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(inboundEventSchemaURL, strings.NewReader(inboundEventSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to add inbound event schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(inboundEventSchemaURL)
	})
	return compiledSchema, schemaErr
}

// DecodeInboundEvent checks raw against the inbound event schema and
// decodes it.
func DecodeInboundEvent(raw []byte) (*InboundEvent, error) {
	schema, err := inboundSchema()
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc interface{}
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if err := schema.Validate(doc); err != nil {
		field, message := "payload", err.Error()
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			if leaf.InstanceLocation != "" {
				field = strings.TrimPrefix(strings.ReplaceAll(leaf.InstanceLocation, "/", "."), ".")
			}
			message = leaf.Message
		}
		return nil, &ValidationError{Field: field, Message: message}
	}

	var event InboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}

	return &event, nil
}
