// Package keystroke defines the canonical keystroke event and turns untrusted
// client-captured records into it.
//
// A RawEvent is whatever the browser sent: field types are not guaranteed, the
// timestamp may be in one of several units, and the event type spelling varies
// between capture libraries. Normalize is the only way to build an Event, so
// every package downstream can rely on its invariants.
package keystroke

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the closed set of keystroke event kinds.
type EventType string

const (
	KeyDown EventType = "keydown"
	KeyUp   EventType = "keyup"
	Paste   EventType = "paste"
)

// ParseEventType maps client spellings onto the closed enum.
func ParseEventType(s string) (EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keydown", "key_down", "down":
		return KeyDown, true
	case "keyup", "key_up", "up":
		return KeyUp, true
	case "paste":
		return Paste, true
	default:
		return "", false
	}
}

func (t EventType) String() string {
	return string(t)
}

// Event is a validated keystroke record.
type Event struct {
	Type      EventType     `json:"event_type"`
	KeyCode   string        `json:"key_code"`
	Character *string       `json:"character,omitempty"`
	Timestamp float64       `json:"timestamp"` // seconds
	Unit      TimestampUnit `json:"timestamp_unit"`
	Sequence  uint64        `json:"sequence_number"`
	Cursor    uint32        `json:"cursor_position"`
}

// Char returns the character payload, or "" when absent.
func (e Event) Char() string {
	if e.Character == nil {
		return ""
	}
	return *e.Character
}

// String formats the event for debugging; the character payload is omitted.
func (e Event) String() string {
	return fmt.Sprintf("#%d %s key=%s t=%.3f cursor=%d", e.Sequence, e.Type, e.KeyCode, e.Timestamp, e.Cursor)
}

// RawEvent is an untrusted event record as decoded from JSON.
type RawEvent map[string]any

// Field names recognized in a RawEvent.
const (
	FieldEventType = "event_type"
	FieldKeyCode   = "key_code"
	FieldCharacter = "character"
	FieldTimestamp = "timestamp"
	FieldSequence  = "sequence_number"
	FieldCursor    = "cursor_position"
)

// MarshalRaw converts a canonical event back into its wire form. The
// timestamp is written in seconds, so normalizing the result keeps the value
// only when it was already an epoch-seconds timestamp.
func MarshalRaw(e Event) RawEvent {
	raw := RawEvent{
		FieldEventType: string(e.Type),
		FieldKeyCode:   e.KeyCode,
		FieldTimestamp: e.Timestamp,
		FieldSequence:  e.Sequence,
		FieldCursor:    e.Cursor,
	}
	if e.Character != nil {
		raw[FieldCharacter] = *e.Character
	}
	return raw
}

// DecodeRawEvents reads either a JSON array of event objects or an object
// with an "events" array. Numbers are kept as json.Number until coercion.
func DecodeRawEvents(data []byte) ([]RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		list, ok := x["events"].([]any)
		if !ok {
			return nil, fmt.Errorf("decode events: object has no events array")
		}
		items = list
	default:
		return nil, fmt.Errorf("decode events: expected array or object, got %T", v)
	}

	out := make([]RawEvent, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			// Non-object entries still count against the batch and get rejected.
			out = append(out, RawEvent{})
			continue
		}
		out = append(out, RawEvent(obj))
	}
	return out, nil
}
