//go:build !unix

package readline

import (
	"errors"
	"os"

	"github.com/elves/asyncline/pkg/term"
)

var errUnsupported = errors.New("terminal not supported on this platform")

type aTTY struct{ out *os.File }

// NewTTY returns a TTY whose Setup always fails.
func NewTTY(in, out *os.File) TTY { return aTTY{out} }

func (aTTY) Setup() (func() error, error) { return nil, errUnsupported }
func (aTTY) Size() (w, h int) { return 80, 24 }
func (aTTY) ReadEvent() (term.Event, error) { return nil, term.ErrStopped }
func (aTTY) CloseReader() {}

func (t aTTY) Write(p []byte) (int, error) { return t.out.Write(p) }
