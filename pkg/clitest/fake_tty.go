// Package clitest provides utilities for testing terminal programs without a
// terminal.
package clitest

import (
	"sync"
	"testing"
	"time"

	"github.com/elves/asyncline/pkg/term"
	"github.com/elves/asyncline/pkg/testutil"
)

const (
	// Maximum number of events FakeTTY produces without being read.
	fakeTTYEvents = 4096
)

// Initial size of fake TTY.
const (
	FakeTTYHeight = 20
	FakeTTYWidth  = 50
)

type eventOrError struct {
	event term.Event
	err   error
}

// FakeTTY is a terminal that reads injected events and renders output on a
// Screen. It is controlled with a TTYCtrl.
type FakeTTY struct {
	screen *Screen

	setup func() (func() error, error)
	// Number of times the function returned by Setup has been called.
	restored int

	// Channel that ReadEvent reads from. Can be used to inject additional
	// events.
	eventCh chan eventOrError
	// Whether eventCh has been closed.
	eventChClosed bool
	// Mutex for synchronizing writing and closing eventCh, and guarding
	// restored.
	eventChMutex sync.Mutex

	sizeMutex sync.RWMutex
	// Predefined sizes.
	height, width int

	writeErrMutex sync.Mutex
	// Error returned by Write instead of rendering.
	writeErr error
}

// NewFakeTTY creates a new FakeTTY and a handle for controlling it. The
// initial size of the terminal is FakeTTYHeight and FakeTTYWidth.
func NewFakeTTY() (*FakeTTY, TTYCtrl) {
	tty := &FakeTTY{
		screen:  NewScreen(FakeTTYWidth, FakeTTYHeight),
		eventCh: make(chan eventOrError, fakeTTYEvents),
		height:  FakeTTYHeight, width: FakeTTYWidth,
	}
	return tty, TTYCtrl{tty}
}

// Setup delegates to the setup function specified using the SetSetup method
// of TTYCtrl. By default it succeeds and returns a function that counts how
// many times it has been called.
func (t *FakeTTY) Setup() (func() error, error) {
	if t.setup != nil {
		return t.setup()
	}
	return func() error {
		t.eventChMutex.Lock()
		defer t.eventChMutex.Unlock()
		t.restored++
		return nil
	}, nil
}

// Size returns the size specified by using the SetSize method of TTYCtrl.
func (t *FakeTTY) Size() (w, h int) {
	t.sizeMutex.RLock()
	defer t.sizeMutex.RUnlock()
	return t.width, t.height
}

// ReadEvent returns the next injected event or error. After CloseReader, it
// returns term.ErrStopped.
func (t *FakeTTY) ReadEvent() (term.Event, error) {
	e, ok := <-t.eventCh
	if !ok {
		return nil, term.ErrStopped
	}
	return e.event, e.err
}

// CloseReader closes eventCh.
func (t *FakeTTY) CloseReader() {
	t.eventChMutex.Lock()
	defer t.eventChMutex.Unlock()
	if !t.eventChClosed {
		close(t.eventCh)
		t.eventChClosed = true
	}
}

// Write renders p on the screen, or fails with the error specified using the
// SetWriteError method of TTYCtrl.
func (t *FakeTTY) Write(p []byte) (int, error) {
	t.writeErrMutex.Lock()
	err := t.writeErr
	t.writeErrMutex.Unlock()
	if err != nil {
		return 0, err
	}
	return t.screen.Write(p)
}

// TTYCtrl is an interface for controlling a fake terminal.
type TTYCtrl struct{ *FakeTTY }

// SetSetup sets the return values of the Setup method of the fake terminal.
func (t TTYCtrl) SetSetup(restore func() error, err error) {
	t.setup = func() (func() error, error) {
		return restore, err
	}
}

// SetSize sets the size of the fake terminal. The screen keeps its content
// and does not reflow.
func (t TTYCtrl) SetSize(h, w int) {
	t.sizeMutex.Lock()
	defer t.sizeMutex.Unlock()
	t.height, t.width = h, w
	t.screen.SetWidth(w)
}

// SetWriteError makes all subsequent writes to the fake terminal fail with
// err. A nil err makes them succeed again.
func (t TTYCtrl) SetWriteError(err error) {
	t.writeErrMutex.Lock()
	defer t.writeErrMutex.Unlock()
	t.writeErr = err
}

// Inject injects events to the fake terminal.
func (t TTYCtrl) Inject(events ...term.Event) {
	for _, event := range events {
		t.inject(eventOrError{event: event})
	}
}

// InjectError makes the next ReadEvent call fail with err.
func (t TTYCtrl) InjectError(err error) {
	t.inject(eventOrError{err: err})
}

func (t TTYCtrl) inject(e eventOrError) {
	t.eventChMutex.Lock()
	defer t.eventChMutex.Unlock()
	if !t.eventChClosed {
		t.eventCh <- e
	}
}

// Type injects a key event for each rune of s.
func (t TTYCtrl) Type(s string) {
	for _, r := range s {
		t.Inject(term.K(r))
	}
}

// Screen returns the screen that the fake terminal renders on.
func (t TTYCtrl) Screen() *Screen { return t.screen }

// Restored returns how many times the restore function returned by the
// default Setup has been called.
func (t TTYCtrl) Restored() int {
	t.eventChMutex.Lock()
	defer t.eventChMutex.Unlock()
	return t.restored
}

// ReaderClosed returns whether CloseReader has been called.
func (t TTYCtrl) ReaderClosed() bool {
	t.eventChMutex.Lock()
	defer t.eventChMutex.Unlock()
	return t.eventChClosed
}

// TestScreen verifies that the screen snapshot becomes want within a second,
// and aborts the test if it doesn't. See Screen.Snapshot for the format.
func (t TTYCtrl) TestScreen(tt *testing.T, want string) {
	tt.Helper()
	timeout := time.After(testutil.Scaled(time.Second))
	for {
		if t.screen.Snapshot() == want {
			return
		}
		select {
		case <-t.screen.Updates():
		case <-timeout:
			tt.Fatalf("wanted screen not shown:\n%s\nlast screen:\n%s",
				want, t.screen.Snapshot())
		}
	}
}
