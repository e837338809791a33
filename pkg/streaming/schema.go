package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidMessage wraps every decode or schema failure.
var ErrInvalidMessage = errors.New("invalid message")

const inboundSchemaURL = "mem://mapviewer/inbound.json"

const inboundSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": ["map_click", "pointer_move", "closer_click", "position", "position_error", "add_marker", "remove_marker"]
    }
  },
  "$defs": {
    "pixel": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": { "type": "number" },
        "y": { "type": "number" },
        "width": { "type": "integer", "minimum": 1 },
        "height": { "type": "integer", "minimum": 1 }
      }
    },
    "lonlat": {
      "type": "object",
      "required": ["lon", "lat"],
      "properties": {
        "lon": { "type": "number", "minimum": -180, "maximum": 180 },
        "lat": { "type": "number", "minimum": -90, "maximum": 90 }
      }
    }
  },
  "allOf": [
    {
      "if": { "properties": { "type": { "enum": ["map_click", "pointer_move"] } } },
      "then": { "required": ["payload"], "properties": { "payload": { "$ref": "#/$defs/pixel" } } }
    },
    {
      "if": { "properties": { "type": { "const": "position" } } },
      "then": {
        "required": ["payload"],
        "properties": {
          "payload": {
            "allOf": [{ "$ref": "#/$defs/lonlat" }],
            "properties": { "accuracy": { "type": "number", "minimum": 0 } }
          }
        }
      }
    },
    {
      "if": { "properties": { "type": { "const": "position_error" } } },
      "then": {
        "required": ["payload"],
        "properties": {
          "payload": {
            "type": "object",
            "required": ["code"],
            "properties": {
              "code": { "type": "integer", "minimum": 0, "maximum": 3 },
              "reason": { "type": "string" }
            }
          }
        }
      }
    },
    {
      "if": { "properties": { "type": { "const": "add_marker" } } },
      "then": {
        "required": ["payload"],
        "properties": {
          "payload": {
            "allOf": [{ "$ref": "#/$defs/lonlat" }],
            "required": ["label"],
            "properties": {
              "label": { "type": "string", "maxLength": 256 },
              "style": { "enum": ["user", "generic"] }
            }
          }
        }
      }
    },
    {
      "if": { "properties": { "type": { "const": "remove_marker" } } },
      "then": {
        "required": ["payload"],
        "properties": {
          "payload": {
            "type": "object",
            "required": ["id"],
            "properties": { "id": { "type": "integer", "minimum": 1 } }
          }
        }
      }
    }
  ]
}`

// Validator checks inbound client messages against the message schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the inbound message schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(inboundSchemaURL, strings.NewReader(inboundSchema)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(inboundSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile inbound schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Decode validates raw and returns its envelope.
func (v *Validator) Decode(raw []byte) (Envelope, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var p T
	if len(env.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %s payload: %w", ErrInvalidMessage, env.Type, err)
	}
	return p, nil
}
