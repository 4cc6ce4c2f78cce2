package term

import "github.com/elves/asyncline/pkg/ui"

// Event represents an event that can be read from the terminal.
type Event interface {
	isEvent()
}

// KeyEvent represents a key press.
type KeyEvent ui.Key

// K constructs a new KeyEvent.
func K(r rune, mods ...ui.Mod) KeyEvent {
	return KeyEvent(ui.K(r, mods...))
}

// KeyRelease represents a key release. Reader never produces it, since it
// does not enable enhanced keyboard reporting; it exists so that other event
// sources can report releases, which line.State ignores.
type KeyRelease ui.Key

// ResizeEvent is delivered when the terminal changes size.
type ResizeEvent struct {
	Width  int
	Height int
}

// CursorPosition represents a report of the current cursor position from the
// terminal driver, usually as a response from a cursor position request.
type CursorPosition struct {
	Row int
	Col int
}

// PasteSetting indicates the start or finish of pasted text.
type PasteSetting bool

func (KeyEvent) isEvent()       {}
func (KeyRelease) isEvent()     {}
func (ResizeEvent) isEvent()    {}
func (CursorPosition) isEvent() {}
func (PasteSetting) isEvent()   {}
