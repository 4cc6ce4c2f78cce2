// Package sys provide system utilities with the same API across OSes.
package sys

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const sigsChanBufferSize = 16

// NotifyResize returns a channel on which window size change signals get
// delivered, and a function to stop the delivery. On platforms without such a
// signal, the channel never receives anything.
func NotifyResize() (<-chan os.Signal, func()) { return notifyResize() }

// WinSize queries the size of the terminal referenced by the given file. It
// returns (-1, -1) if the size cannot be determined. A zero dimension, as
// reported by some serial consoles, is replaced by a reasonable default.
func WinSize(file *os.File) (row, col int) {
	col, row, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return -1, -1
	}
	if col == 0 {
		col = 80
	}
	if row == 0 {
		row = 24
	}
	return row, col
}

// IsATTY determines whether the given file is a terminal.
func IsATTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
