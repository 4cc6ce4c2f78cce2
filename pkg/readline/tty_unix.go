//go:build unix

package readline

import (
	"os"
	"sync"

	xterm "golang.org/x/term"

	"github.com/elves/asyncline/pkg/sys"
	"github.com/elves/asyncline/pkg/term"
)

// Buffer size of the channel of events read from the terminal.
const ttyEventsBufferSize = 64

type aTTY struct {
	in, out *os.File

	reader     term.Reader
	stopResize func()
	events     chan eventOrError
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewTTY returns a TTY that reads from in and writes to out. Both are
// normally the same terminal.
func NewTTY(in, out *os.File) TTY {
	return &aTTY{in: in, out: out,
		events: make(chan eventOrError, ttyEventsBufferSize),
		stop:   make(chan struct{})}
}

func (t *aTTY) Setup() (func() error, error) {
	fd := int(t.in.Fd())
	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	restore := func() error { return xterm.Restore(fd, state) }

	reader, err := term.NewReader(t.in)
	if err != nil {
		restore()
		return nil, err
	}
	t.reader = reader
	sigCh, stopResize := sys.NotifyResize()
	t.stopResize = stopResize
	go t.readEvents()
	go t.relayResize(sigCh)
	return restore, nil
}

func (t *aTTY) readEvents() {
	for {
		event, err := t.reader.ReadEvent()
		if err == term.ErrStopped {
			return
		}
		select {
		case t.events <- eventOrError{event, err}:
		case <-t.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *aTTY) relayResize(sigCh <-chan os.Signal) {
	for {
		select {
		case <-sigCh:
			w, h := t.Size()
			select {
			case t.events <- eventOrError{event: term.ResizeEvent{Width: w, Height: h}}:
			case <-t.stop:
				return
			}
		case <-t.stop:
			return
		}
	}
}

func (t *aTTY) Size() (w, h int) {
	h, w = sys.WinSize(t.out)
	if w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

func (t *aTTY) ReadEvent() (term.Event, error) {
	select {
	case e := <-t.events:
		return e.event, e.err
	case <-t.stop:
		return nil, term.ErrStopped
	}
}

func (t *aTTY) CloseReader() {
	t.stopOnce.Do(func() {
		close(t.stop)
		if t.reader != nil {
			t.stopResize()
			t.reader.Close()
		}
	})
}

func (t *aTTY) Write(p []byte) (int, error) {
	return t.out.Write(p)
}
