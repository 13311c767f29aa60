package keystroke

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

// =============================================================================
// Tests for Normalize
// =============================================================================

func validRaw() RawEvent {
	return RawEvent{
		"event_type":      "keydown",
		"key_code":        "65",
		"character":       "a",
		"timestamp":       1500.0,
		"sequence_number": 7.0,
		"cursor_position": 3.0,
	}
}

func TestNormalizeValid(t *testing.T) {
	ev, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Type != KeyDown {
		t.Errorf("expected keydown, got %s", ev.Type)
	}
	if ev.KeyCode != "65" || ev.Char() != "a" {
		t.Errorf("unexpected key payload: %q %q", ev.KeyCode, ev.Char())
	}
	if ev.Sequence != 7 || ev.Cursor != 3 {
		t.Errorf("unexpected sequence/cursor: %d %d", ev.Sequence, ev.Cursor)
	}
	if ev.Unit != UnitRelativeMillis || ev.Timestamp != 1.5 {
		t.Errorf("expected 1.5s relative, got %v %s", ev.Timestamp, ev.Unit)
	}
}

func TestNormalizeEventTypeSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{"keydown", KeyDown},
		{"KeyDown", KeyDown},
		{"key_down", KeyDown},
		{"down", KeyDown},
		{"keyup", KeyUp},
		{"KEY_UP", KeyUp},
		{"up", KeyUp},
		{"paste", Paste},
		{" Paste ", Paste},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			raw := validRaw()
			raw["event_type"] = tt.in
			ev, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.in, err)
			}
			if ev.Type != tt.want {
				t.Errorf("got %s, want %s", ev.Type, tt.want)
			}
		})
	}
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(RawEvent)
		field string
		cause error
	}{
		{"missing type", func(r RawEvent) { delete(r, "event_type") }, FieldEventType, ErrMissingField},
		{"blank type", func(r RawEvent) { r["event_type"] = "  " }, FieldEventType, ErrMissingField},
		{"numeric type", func(r RawEvent) { r["event_type"] = 1.0 }, FieldEventType, ErrMissingField},
		{"unknown type", func(r RawEvent) { r["event_type"] = "mousemove" }, FieldEventType, ErrUnknownEventType},
		{"missing key code", func(r RawEvent) { delete(r, "key_code") }, FieldKeyCode, ErrMissingField},
		{"empty key code", func(r RawEvent) { r["key_code"] = "" }, FieldKeyCode, ErrMissingField},
		{"bool key code", func(r RawEvent) { r["key_code"] = true }, FieldKeyCode, ErrInvalidField},
		{"object key code", func(r RawEvent) { r["key_code"] = map[string]any{} }, FieldKeyCode, ErrInvalidField},
		{"missing sequence", func(r RawEvent) { delete(r, "sequence_number") }, FieldSequence, ErrMissingField},
		{"empty sequence", func(r RawEvent) { r["sequence_number"] = "" }, FieldSequence, ErrMissingField},
		{"negative sequence", func(r RawEvent) { r["sequence_number"] = -1.0 }, FieldSequence, ErrInvalidField},
		{"text sequence", func(r RawEvent) { r["sequence_number"] = "seven" }, FieldSequence, ErrInvalidField},
		{"missing timestamp", func(r RawEvent) { delete(r, "timestamp") }, FieldTimestamp, ErrMissingField},
		{"text timestamp", func(r RawEvent) { r["timestamp"] = "soon" }, FieldTimestamp, ErrInvalidField},
		{"nan timestamp", func(r RawEvent) { r["timestamp"] = math.NaN() }, FieldTimestamp, ErrInvalidField},
		{"inf timestamp", func(r RawEvent) { r["timestamp"] = "Inf" }, FieldTimestamp, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.edit(raw)
			_, err := Normalize(raw)
			if err == nil {
				t.Fatal("expected rejection")
			}
			var rej *RejectionError
			if !errors.As(err, &rej) {
				t.Fatalf("expected *RejectionError, got %T", err)
			}
			if rej.Field != tt.field {
				t.Errorf("field = %s, want %s", rej.Field, tt.field)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("cause = %v, want %v", rej.Err, tt.cause)
			}
		})
	}
}

func TestNormalizeCoercion(t *testing.T) {
	raw := validRaw()
	raw["key_code"] = 13.0
	raw["sequence_number"] = "42"
	raw["timestamp"] = json.Number("1700000000123")
	raw["cursor_position"] = -4.0
	raw["character"] = 5.0

	ev, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.KeyCode != "13" {
		t.Errorf("key code = %q, want 13", ev.KeyCode)
	}
	if ev.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", ev.Sequence)
	}
	if ev.Unit != UnitEpochMillis || math.Abs(ev.Timestamp-1700000000.123) > 1e-6 {
		t.Errorf("timestamp = %v %s", ev.Timestamp, ev.Unit)
	}
	if ev.Cursor != 0 {
		t.Errorf("negative cursor should default to 0, got %d", ev.Cursor)
	}
	if ev.Character != nil {
		t.Errorf("non-string character should be absent, got %q", *ev.Character)
	}
}

func TestNormalizeSequenceTruncates(t *testing.T) {
	raw := validRaw()
	raw["sequence_number"] = 9.9
	ev, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Sequence != 9 {
		t.Errorf("sequence = %d, want 9", ev.Sequence)
	}
}

func TestNormalizeLargeSequenceKeepsPrecision(t *testing.T) {
	raw := validRaw()
	raw["sequence_number"] = json.Number("9223372036854775807")
	ev, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Sequence != math.MaxInt64 {
		t.Errorf("sequence = %d", ev.Sequence)
	}

	raw["sequence_number"] = json.Number("9223372036854775808")
	if _, err := Normalize(raw); !errors.Is(err, ErrInvalidField) {
		t.Errorf("sequence beyond int64 should be invalid, got %v", err)
	}
}

func TestNormalizeCursorSaturates(t *testing.T) {
	raw := validRaw()
	raw["cursor_position"] = 1e12
	ev, _ := Normalize(raw)
	if ev.Cursor != math.MaxUint32 {
		t.Errorf("cursor = %d, want MaxUint32", ev.Cursor)
	}
	raw["cursor_position"] = "garbage"
	ev, _ = Normalize(raw)
	if ev.Cursor != 0 {
		t.Errorf("cursor = %d, want 0", ev.Cursor)
	}
}

func TestNormalizeCharacterPassThrough(t *testing.T) {
	for _, c := range []string{"Enter", "é", "  "} {
		raw := validRaw()
		raw["character"] = c
		ev, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if ev.Char() != c {
			t.Errorf("character = %q, want %q", ev.Char(), c)
		}
	}
}

// =============================================================================
// Tests for ResolveTimestamp
// =============================================================================

func TestResolveTimestampBoundaries(t *testing.T) {
	tests := []struct {
		in      float64
		seconds float64
		unit    TimestampUnit
	}{
		{0, 0, UnitRelativeMillis},
		{250, 0.25, UnitRelativeMillis},
		{1e9, 1e6, UnitRelativeMillis},
		{1e9 + 1, 1e9 + 1, UnitEpochSeconds},
		{1700000000, 1700000000, UnitEpochSeconds},
		{1e10, 1e10, UnitEpochSeconds},
		{1e10 + 1000, 1e7 + 1, UnitEpochMillis},
		{1700000000000, 1700000000, UnitEpochMillis},
	}
	for _, tt := range tests {
		got, unit := ResolveTimestamp(tt.in)
		if unit != tt.unit {
			t.Errorf("ResolveTimestamp(%v) unit = %s, want %s", tt.in, unit, tt.unit)
		}
		if math.Abs(got-tt.seconds) > 1e-6 {
			t.Errorf("ResolveTimestamp(%v) = %v, want %v", tt.in, got, tt.seconds)
		}
	}
}

// =============================================================================
// Tests for Resolve
// =============================================================================

func keyEvent(code, char string) Event {
	ev := Event{Type: KeyDown, KeyCode: code}
	if char != "" {
		ev.Character = &char
	}
	return ev
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		ev     Event
		action Action
		r      rune
	}{
		{"letter", keyEvent("65", "a"), ActionInsert, 'a'},
		{"carriage return", keyEvent("13", "\r"), ActionInsert, '\n'},
		{"named enter", keyEvent("13", "Enter"), ActionInsert, '\n'},
		{"named space", keyEvent("0", "SPACE"), ActionInsert, ' '},
		{"named backspace", keyEvent("0", "Backspace"), ActionBackspace, 0},
		{"code backspace", keyEvent("8", ""), ActionBackspace, 0},
		{"code delete", keyEvent("46", ""), ActionDelete, 0},
		{"code tab", keyEvent("9", ""), ActionInsert, '\t'},
		{"code space", keyEvent("32", ""), ActionInsert, ' '},
		{"code enter", keyEvent("13", ""), ActionInsert, '\n'},
		{"control char falls back to code", keyEvent("8", "\b"), ActionBackspace, 0},
		{"shift", keyEvent("16", "Shift"), ActionNone, 0},
		{"unknown code", keyEvent("37", ""), ActionNone, 0},
		{"named key code", keyEvent("Backspace", ""), ActionBackspace, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, r := Resolve(tt.ev)
			if action != tt.action || r != tt.r {
				t.Errorf("Resolve = (%s, %q), want (%s, %q)", action, r, tt.action, tt.r)
			}
		})
	}
}

func TestDecodeRawEvents(t *testing.T) {
	events, err := DecodeRawEvents([]byte(`{"events":[{"event_type":"keydown","key_code":65,"timestamp":1,"sequence_number":1}, 5]}`))
	if err != nil {
		t.Fatalf("DecodeRawEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(events))
	}
	if _, ok := events[0]["key_code"].(json.Number); !ok {
		t.Errorf("expected json.Number, got %T", events[0]["key_code"])
	}
	if _, err := Normalize(events[1]); err == nil {
		t.Error("non-object entry should be rejected")
	}

	if _, err := DecodeRawEvents([]byte(`"nope"`)); err == nil {
		t.Error("expected error for scalar payload")
	}
}
