package readline

import (
	"io"

	"github.com/elves/asyncline/pkg/term"
)

// TTY is the terminal a Readline works with.
type TTY interface {
	// Output of the editor. It only ever receives text and VT sequences.
	io.Writer

	// Setup puts the terminal into raw mode and starts the delivery of events.
	// It returns a function that restores the terminal.
	//
	// This method should be called before any other method is called.
	Setup() (restore func() error, err error)

	// Size returns the width and height of the terminal.
	Size() (w, h int)

	// ReadEvent blocks until an event is available. A change of the terminal
	// size is delivered as a term.ResizeEvent. After CloseReader is called,
	// it returns term.ErrStopped.
	ReadEvent() (term.Event, error)
	// CloseReader stops the delivery of events, including any outstanding
	// ReadEvent call. It may be called more than once.
	CloseReader()
}

type eventOrError struct {
	event term.Event
	err   error
}
