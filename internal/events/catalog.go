package events

import "fmt"

// Descriptor describes how an event type is routed and which JSON schema it is registered under.
type Descriptor struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]Descriptor{
	TypeEntryRecorded: {
		Topic:         TopicEntryEvents,
		SchemaSubject: "gym_entry_recorded-value",
		Schema:        entryRecordedSchema,
	},
	TypeEntryClosed: {
		Topic:         TopicEntryEvents,
		SchemaSubject: "gym_entry_closed-value",
		Schema:        entryClosedSchema,
	},
	TypeIdentityStatusChanged: {
		Topic:         TopicIdentityEvents,
		SchemaSubject: "gym_identity_status_changed-value",
		Schema:        identityStatusChangedSchema,
	},
}

// Lookup returns the descriptor for an event type.
func Lookup(eventType string) (Descriptor, error) {
	desc, ok := catalog[eventType]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return desc, nil
}

// Topics lists every topic the catalog publishes to, without duplicates.
func Topics() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(catalog))
	for _, desc := range catalog {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	return out
}

const entryRecordedSchema = `{
  "type": "object",
  "title": "EntryRecorded",
  "properties": {
    "entry_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "identity_id": {"type": "string"},
    "entry_time": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "tenant_id", "identity_id", "entry_time"],
  "additionalProperties": false
}`

const entryClosedSchema = `{
  "type": "object",
  "title": "EntryClosed",
  "properties": {
    "entry_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "identity_id": {"type": "string"},
    "entry_time": {"type": "string", "format": "date-time"},
    "exit_time": {"type": "string", "format": "date-time"},
    "duration_min": {"type": "integer"}
  },
  "required": ["entry_id", "tenant_id", "identity_id", "entry_time", "exit_time", "duration_min"],
  "additionalProperties": false
}`

const identityStatusChangedSchema = `{
  "type": "object",
  "title": "IdentityStatusChanged",
  "properties": {
    "identity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "status": {"type": "string", "enum": ["pending", "approved", "rejected"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["identity_id", "tenant_id", "status", "occurred_at"],
  "additionalProperties": false
}`
