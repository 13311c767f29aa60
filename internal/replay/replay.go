// Package replay reconstructs document text from a keystroke ledger.
//
// Reconstruction is a left fold of Step over the ledger's ordered events,
// starting from the empty State. Step never mutates its input, so any prefix
// of the fold can be inspected on its own.
package replay

import (
	"typeproof/internal/keystroke"
)

// State is the text buffer and cursor after some prefix of events.
type State struct {
	Text   []rune
	Cursor int
}

// String returns the buffer contents.
func (s State) String() string {
	return string(s.Text)
}

func clamp(pos, n int) int {
	if pos < 0 {
		return 0
	}
	if pos > n {
		return n
	}
	return pos
}

// Step applies one event. Only KeyDown events edit the buffer; the event's
// recorded cursor position is clamped to the buffer before use.
func Step(s State, ev keystroke.Event) State {
	if ev.Type != keystroke.KeyDown {
		return s
	}
	action, r := keystroke.Resolve(ev)
	if action == keystroke.ActionNone {
		return s
	}

	n := len(s.Text)
	pos := clamp(int(ev.Cursor), n)

	switch action {
	case keystroke.ActionBackspace:
		if pos == 0 {
			return State{Text: s.Text, Cursor: 0}
		}
		text := make([]rune, 0, n-1)
		text = append(text, s.Text[:pos-1]...)
		text = append(text, s.Text[pos:]...)
		return State{Text: text, Cursor: pos - 1}

	case keystroke.ActionDelete:
		if pos == n {
			return State{Text: s.Text, Cursor: pos}
		}
		text := make([]rune, 0, n-1)
		text = append(text, s.Text[:pos]...)
		text = append(text, s.Text[pos+1:]...)
		return State{Text: text, Cursor: pos}

	default:
		text := make([]rune, 0, n+1)
		text = append(text, s.Text[:pos]...)
		text = append(text, r)
		text = append(text, s.Text[pos:]...)
		return State{Text: text, Cursor: pos + 1}
	}
}

// Fold applies events in the order given.
func Fold(events []keystroke.Event) State {
	var s State
	for _, ev := range events {
		s = Step(s, ev)
	}
	return s
}

// Reconstruct replays events and returns the resulting text. Callers pass
// ledger.Ordered() so the fold runs in sequence order.
func Reconstruct(events []keystroke.Event) string {
	return Fold(events).String()
}

// Stats summarizes what a replay did.
type Stats struct {
	Inserted   int `json:"inserted"`
	Backspaces int `json:"backspaces"`
	Deletes    int `json:"deletes"`
	Ignored    int `json:"ignored"`
	FinalRunes int `json:"final_runes"`
}

// Summarize replays events and counts edits by kind.
func Summarize(events []keystroke.Event) Stats {
	var st Stats
	var s State
	for _, ev := range events {
		if ev.Type == keystroke.KeyDown {
			switch a, _ := keystroke.Resolve(ev); a {
			case keystroke.ActionInsert:
				st.Inserted++
			case keystroke.ActionBackspace:
				st.Backspaces++
			case keystroke.ActionDelete:
				st.Deletes++
			default:
				st.Ignored++
			}
		}
		s = Step(s, ev)
	}
	st.FinalRunes = len(s.Text)
	return st
}
