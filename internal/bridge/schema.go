package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type envelopeSchemaRegistry struct {
	once    sync.Once
	initErr error
	base    *jsonschema.Schema
	byType  map[string]*jsonschema.Schema
}

var envelopeSchemas envelopeSchemaRegistry

func initEnvelopeSchemas() error {
	envelopeSchemas.once.Do(func() {
		base, err := jsonschema.CompileString("envelope", envelopeBaseSchema)
		if err != nil {
			envelopeSchemas.initErr = err
			return
		}
		envelopeSchemas.base = base

		perType := map[string]string{
			EnvelopeMessage:             messageEnvelopeSchema,
			EnvelopeActionResponse:      actionResponseEnvelopeSchema,
			EnvelopeBrowserActionResult: browserActionResultEnvelopeSchema,
			EnvelopeTabState:            tabStateEnvelopeSchema,
		}
		envelopeSchemas.byType = make(map[string]*jsonschema.Schema, len(perType))
		for name, schema := range perType {
			compiled, err := jsonschema.CompileString("envelope_"+name, schema)
			if err != nil {
				envelopeSchemas.initErr = err
				return
			}
			envelopeSchemas.byType[name] = compiled
		}
	})
	return envelopeSchemas.initErr
}

// validateInbound checks a raw inbound frame against the base schema
// and the schema for its declared type.
func validateInbound(raw []byte) (*Envelope, error) {
	if err := initEnvelopeSchemas(); err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := envelopeSchemas.base.Validate(payload); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	schema, ok := envelopeSchemas.byType[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, err
	}
	return &env, nil
}

const envelopeBaseSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const messageEnvelopeSchema = `{
  "type": "object",
  "required": ["type", "text"],
  "properties": {
    "type": { "const": "message" },
    "text": { "type": "string", "minLength": 1 },
    "tab": {
      "type": "object",
      "properties": {
        "url": { "type": "string" },
        "title": { "type": "string" }
      },
      "additionalProperties": true
    },
    "attachments": { "type": "array" }
  },
  "additionalProperties": true
}`

const actionResponseEnvelopeSchema = `{
  "type": "object",
  "required": ["type", "token", "approved"],
  "properties": {
    "type": { "const": "action_response" },
    "token": { "type": "string", "minLength": 1 },
    "approved": { "type": "boolean" }
  },
  "additionalProperties": true
}`

const browserActionResultEnvelopeSchema = `{
  "type": "object",
  "required": ["type", "token", "result"],
  "properties": {
    "type": { "const": "browser_action_result" },
    "token": { "type": "string", "minLength": 1 },
    "result": { "type": "object" }
  },
  "additionalProperties": true
}`

const tabStateEnvelopeSchema = `{
  "type": "object",
  "required": ["type", "tab"],
  "properties": {
    "type": { "const": "tab_state" },
    "tab": {
      "type": "object",
      "properties": {
        "url": { "type": "string" },
        "title": { "type": "string" }
      },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`
