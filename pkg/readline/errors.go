package readline

import "errors"

var (
	// ErrClosed is returned by Readline when all the Writers have been closed
	// and no input is pending, or after Close.
	ErrClosed = errors.New("readline: closed")
	// ErrNotTerminal is returned by Create when stdin is not a terminal.
	ErrNotTerminal = errors.New("readline: stdin is not a terminal")
)

// IOError wraps a failure to set up, read from or write to the terminal, and
// input that cannot be decoded. It is fatal.
type IOError struct {
	// One of "setup", "read", "decode", "write" and "restore".
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "readline: " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }
