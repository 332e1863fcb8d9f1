package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/catalogops/syncboard/internal/syncstate"
)

var ErrMalformedEvent = errors.New("malformed event")

// eventSchemaJSON pins the wire contract of the push feed. The envelope is
// always {type, timestamp, payload}; the payload shape is keyed by type.
// Sources are deliberately not an enum so new upstream sources degrade to
// no-ops instead of decode failures.
const eventSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "envelope": {
      "type": "object",
      "required": ["type", "timestamp", "payload"],
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "timestamp": {"type": "string", "minLength": 1},
        "payload": {"type": "object"}
      }
    },
    "sync_start": {
      "type": "object",
      "required": ["source"],
      "properties": {
        "source": {"type": "string", "minLength": 1}
      }
    },
    "sync_progress": {
      "type": "object",
      "required": ["source", "percentage"],
      "properties": {
        "source": {"type": "string", "minLength": 1},
        "percentage": {"type": "integer"},
        "currentItem": {"type": "string"}
      }
    },
    "sync_complete": {
      "type": "object",
      "required": ["source", "itemsProcessed"],
      "properties": {
        "source": {"type": "string", "minLength": 1},
        "itemsProcessed": {"type": "integer", "minimum": 0},
        "added": {"type": "integer", "minimum": 0},
        "updated": {"type": "integer", "minimum": 0},
        "errors": {"type": "integer", "minimum": 0}
      }
    },
    "sync_error": {
      "type": "object",
      "required": ["source", "errorCode"],
      "properties": {
        "source": {"type": "string", "minLength": 1},
        "errorCode": {"type": "string", "minLength": 1},
        "message": {"type": "string"}
      }
    }
  }
}`

// EventDecoder validates and decodes wire messages into syncstate events.
// Validation happens here so nothing malformed ever reaches the reducer.
type EventDecoder struct {
	envelope *jsonschema.Schema
	payloads map[string]*jsonschema.Schema
}

func NewEventDecoder() (*EventDecoder, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("events.json", doc); err != nil {
		return nil, err
	}
	envelope, err := compiler.Compile("events.json#/$defs/envelope")
	if err != nil {
		return nil, err
	}
	payloads := map[string]*jsonschema.Schema{}
	for _, kind := range []string{"sync_start", "sync_progress", "sync_complete", "sync_error"} {
		schema, err := compiler.Compile("events.json#/$defs/" + kind)
		if err != nil {
			return nil, err
		}
		payloads[kind] = schema
	}
	return &EventDecoder{envelope: envelope, payloads: payloads}, nil
}

// Decode turns one wire message into an Event. Unknown event types pass
// through undecoded beyond the envelope; the reducer ignores them. Any
// validation failure returns ErrMalformedEvent.
func (d *EventDecoder) Decode(data []byte) (syncstate.Event, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return syncstate.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := d.envelope.Validate(instance); err != nil {
		return syncstate.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var envelope struct {
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
		Payload   struct {
			Source         string `json:"source"`
			Percentage     int    `json:"percentage"`
			CurrentItem    string `json:"currentItem"`
			ItemsProcessed int    `json:"itemsProcessed"`
			Added          int    `json:"added"`
			Updated        int    `json:"updated"`
			Errors         int    `json:"errors"`
			ErrorCode      string `json:"errorCode"`
			Message        string `json:"message"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return syncstate.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if schema, known := d.payloads[envelope.Type]; known {
		object, _ := instance.(map[string]any)
		if err := schema.Validate(object["payload"]); err != nil {
			return syncstate.Event{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, envelope.Type, err)
		}
	}

	timestamp, err := time.Parse(time.RFC3339, envelope.Timestamp)
	if err != nil {
		return syncstate.Event{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedEvent, err)
	}

	return syncstate.Event{
		Kind:           syncstate.EventKind(envelope.Type),
		Source:         syncstate.Source(envelope.Payload.Source),
		Timestamp:      timestamp,
		Percentage:     envelope.Payload.Percentage,
		CurrentItem:    envelope.Payload.CurrentItem,
		ItemsProcessed: envelope.Payload.ItemsProcessed,
		Added:          envelope.Payload.Added,
		Updated:        envelope.Payload.Updated,
		Errors:         envelope.Payload.Errors,
		ErrorCode:      envelope.Payload.ErrorCode,
		Message:        envelope.Payload.Message,
	}, nil
}
