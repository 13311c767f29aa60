package keystroke

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rejection causes.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidField     = errors.New("invalid field value")
	ErrUnknownEventType = errors.New("unknown event type")
)

// RejectionError explains why a raw record was not accepted.
type RejectionError struct {
	Field string
	Err   error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("reject event: %s: %v", e.Field, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func reject(field string, err error) error {
	return &RejectionError{Field: field, Err: err}
}

// Normalize validates a raw record and coerces it into an Event.
//
// event_type, key_code and sequence_number are required; sequence numbers
// must fit a signed 64-bit SQL integer. timestamp must be a
// finite number. cursor_position falls back to 0 and character is dropped
// when it is not a non-empty string.
func Normalize(raw RawEvent) (Event, error) {
	var ev Event

	typeValue, ok := raw[FieldEventType].(string)
	if !ok || strings.TrimSpace(typeValue) == "" {
		return Event{}, reject(FieldEventType, ErrMissingField)
	}
	ev.Type, ok = ParseEventType(typeValue)
	if !ok {
		return Event{}, reject(FieldEventType, ErrUnknownEventType)
	}

	keyCode, err := coerceKeyCode(raw[FieldKeyCode])
	if err != nil {
		return Event{}, reject(FieldKeyCode, err)
	}
	ev.KeyCode = keyCode

	seq, err := coerceSequence(raw[FieldSequence])
	if err != nil {
		return Event{}, reject(FieldSequence, err)
	}
	ev.Sequence = seq

	rawTS, present := raw[FieldTimestamp]
	if !present || rawTS == nil {
		return Event{}, reject(FieldTimestamp, ErrMissingField)
	}
	ts, ok := toFloat(rawTS)
	if !ok || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Event{}, reject(FieldTimestamp, ErrInvalidField)
	}
	ev.Timestamp, ev.Unit = ResolveTimestamp(ts)

	ev.Cursor = coerceCursor(raw[FieldCursor])

	if c, ok := raw[FieldCharacter].(string); ok && c != "" {
		ev.Character = &c
	}

	return ev, nil
}

func coerceKeyCode(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", ErrMissingField
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", ErrMissingField
		}
		return s, nil
	case bool:
		return "", ErrInvalidField
	default:
		f, ok := toFloat(x)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", ErrInvalidField
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

func coerceSequence(v any) (uint64, error) {
	if v == nil {
		return 0, ErrMissingField
	}
	// Exact integer strings keep full 64-bit precision.
	if s, ok := numericText(v); ok {
		if s == "" {
			return 0, ErrMissingField
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n < 0 {
				return 0, ErrInvalidField
			}
			return uint64(n), nil
		}
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidField
	}
	if f < 0 || f >= math.MaxInt64 {
		return 0, ErrInvalidField
	}
	return uint64(math.Trunc(f)), nil
}

func coerceCursor(v any) uint32 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(f)
}

func numericText(v any) (string, bool) {
	switch x := v.(type) {
	case json.Number:
		return strings.TrimSpace(x.String()), true
	case string:
		return strings.TrimSpace(x), true
	default:
		return "", false
	}
}

// toFloat accepts JSON numbers, Go numeric kinds and numeric strings.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
