package keystroke

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Action is the editing effect of a key press.
type Action int

const (
	ActionNone Action = iota
	ActionInsert
	ActionBackspace
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionBackspace:
		return "backspace"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// Key codes with a fixed editing meaning.
const (
	KeyCodeBackspace = 8
	KeyCodeTab       = 9
	KeyCodeEnter     = 13
	KeyCodeSpace     = 32
	KeyCodeDelete    = 46
)

type keyEffect struct {
	action Action
	r      rune
}

var namedKeys = map[string]keyEffect{
	"space":     {ActionInsert, ' '},
	"tab":       {ActionInsert, '\t'},
	"enter":     {ActionInsert, '\n'},
	"return":    {ActionInsert, '\n'},
	"newline":   {ActionInsert, '\n'},
	"backspace": {ActionBackspace, 0},
	"delete":    {ActionDelete, 0},
	"del":       {ActionDelete, 0},
}

var codedKeys = map[int]keyEffect{
	KeyCodeBackspace: {ActionBackspace, 0},
	KeyCodeTab:       {ActionInsert, '\t'},
	KeyCodeEnter:     {ActionInsert, '\n'},
	KeyCodeSpace:     {ActionInsert, ' '},
	KeyCodeDelete:    {ActionDelete, 0},
}

// Resolve determines what a key press does to the text.
//
// The character payload wins when it is a single printable symbol (a carriage
// return becomes a line feed) or a named token such as "Enter". Otherwise the
// key code decides, first as a number and then as a key name. Anything else,
// modifiers and arrows included, resolves to ActionNone.
func Resolve(e Event) (Action, rune) {
	if c := e.Char(); c != "" {
		if r, size := utf8.DecodeRuneInString(c); size == len(c) && r != utf8.RuneError {
			switch {
			case r == '\r':
				return ActionInsert, '\n'
			case r == '\n' || r == '\t' || unicode.IsPrint(r):
				return ActionInsert, r
			}
		}
		if eff, ok := namedKeys[strings.ToLower(c)]; ok {
			return eff.action, eff.r
		}
	}

	if n, err := strconv.Atoi(e.KeyCode); err == nil {
		if eff, ok := codedKeys[n]; ok {
			return eff.action, eff.r
		}
		return ActionNone, 0
	}
	if eff, ok := namedKeys[strings.ToLower(e.KeyCode)]; ok {
		return eff.action, eff.r
	}
	return ActionNone, 0
}

// IsBackspace reports whether the event deletes the character before the cursor.
func IsBackspace(e Event) bool {
	a, _ := Resolve(e)
	return a == ActionBackspace
}

// IsCorrection reports whether the event removes text in either direction.
func IsCorrection(e Event) bool {
	a, _ := Resolve(e)
	return a == ActionBackspace || a == ActionDelete
}
