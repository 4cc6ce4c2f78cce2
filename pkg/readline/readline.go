// Package readline reads lines from a terminal while other goroutines print
// to it.
//
// Output written to the Writer returned by New is printed above the line
// being edited, which is then redrawn intact. A Readline is a single event
// loop: only the goroutine inside Readline touches the line and the
// terminal, and the Writers talk to it through a bounded channel.
package readline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/elves/asyncline/pkg/errutil"
	"github.com/elves/asyncline/pkg/line"
	"github.com/elves/asyncline/pkg/logutil"
	"github.com/elves/asyncline/pkg/rlmetrics"
	"github.com/elves/asyncline/pkg/sharedwriter"
	"github.com/elves/asyncline/pkg/sys"
	"github.com/elves/asyncline/pkg/term"
	"github.com/elves/asyncline/pkg/ui"
)

var logger = logutil.GetLogger("[readline] ")

// Buffer size of the channel of terminal events.
const eventsBufferSize = 128

// Spec specifies the configuration of a Readline.
type Spec struct {
	// The prompt. It may contain SGR sequences.
	Prompt string
	// The terminal. If nil, stdin and stdout are used.
	TTY TTY
	// Capacity of the channel between the Writers and the Readline. If
	// non-positive, sharedwriter.DefaultCapacity is used.
	ChannelCapacity int
	// Maximum number of history entries. If zero, history.DefaultMaxSize is
	// used; if negative, no history is kept.
	MaxHistory int
	// Enables Ctrl-A and Ctrl-E as Home and End.
	Emacs bool
	// Receives counters of the session. May be nil.
	Metrics *rlmetrics.Metrics
}

// Readline edits lines on a terminal. Its methods are safe to call from any
// goroutine, but only one Readline call may be active at a time.
type Readline struct {
	tty     TTY
	restore func() error
	metrics *rlmetrics.Metrics

	// Serializes calls to Readline.
	readMutex sync.Mutex

	// Guards the fields below.
	mutex        sync.Mutex
	state        *line.State
	out          *bufio.Writer
	chunksClosed bool
	// Fatal error, returned by all later Readline calls.
	err error

	receiver *sharedwriter.Receiver
	events   chan eventOrError

	historyMutex   sync.Mutex
	pendingHistory []string
	historyCh      chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Create creates a Readline on stdin and stdout with the given prompt and
// default settings.
func Create(prompt string) (*Readline, *sharedwriter.Writer, error) {
	if !sys.IsATTY(os.Stdin.Fd()) {
		return nil, nil, ErrNotTerminal
	}
	return New(Spec{Prompt: prompt})
}

// New sets up the terminal, draws the prompt and returns a Readline together
// with the Writer that prints above the prompt. The caller should defer a
// call to Close to restore the terminal.
func New(spec Spec) (*Readline, *sharedwriter.Writer, error) {
	tty := spec.TTY
	if tty == nil {
		tty = NewTTY(os.Stdin, os.Stdout)
	}
	restore, err := tty.Setup()
	if err != nil {
		return nil, nil, &IOError{"setup", err}
	}

	w, h := tty.Size()
	state := line.New(spec.Prompt, w, h)
	state.Emacs = spec.Emacs
	switch {
	case spec.MaxHistory > 0:
		state.History().SetMaxSize(spec.MaxHistory)
	case spec.MaxHistory < 0:
		state.History().SetMaxSize(0)
	}

	writer, receiver := sharedwriter.New(spec.ChannelCapacity,
		sharedwriter.OnWouldBlock(spec.Metrics.WouldBlock))
	rl := &Readline{
		tty:       tty,
		restore:   restore,
		metrics:   spec.Metrics,
		state:     state,
		out:       bufio.NewWriter(tty),
		receiver:  receiver,
		events:    make(chan eventOrError, eventsBufferSize),
		historyCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if err := rl.render(); err != nil {
		rl.Close()
		return nil, nil, err
	}
	go rl.pump()
	logger.Printf("started with a %dx%d terminal", w, h)
	return rl, writer, nil
}

// Reads events until the reader is stopped or fails.
func (rl *Readline) pump() {
	for {
		event, err := rl.tty.ReadEvent()
		if err == term.ErrStopped {
			return
		}
		select {
		case rl.events <- eventOrError{event, err}:
		case <-rl.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Must be called with rl.mutex held.
func (rl *Readline) flush() error {
	if err := rl.out.Flush(); err != nil {
		// A bufio.Writer stays failed after an error.
		rl.out = bufio.NewWriter(rl.tty)
		return &IOError{"write", err}
	}
	return nil
}

// Flushes the output after writing to it failed with err or succeeded. Must
// be called with rl.mutex held.
func (rl *Readline) finish(err error) error {
	if flushErr := rl.flush(); flushErr != nil {
		return flushErr
	}
	if err != nil {
		return &IOError{"write", err}
	}
	return nil
}

func (rl *Readline) render() error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	var err error
	if !rl.state.Rendered() {
		err = rl.state.Render(rl.out)
	}
	return rl.finish(err)
}

// Readline waits until the user submits the line, interrupts it, or signals
// the end of input, and returns the corresponding line.Output. Meanwhile, it
// prints chunks sent by the Writers above the line.
//
// After all Writers are closed, Readline handles the terminal input already
// pending, and then returns ErrClosed, as do all later calls. Errors from the
// terminal are returned as *IOError and are also returned by all later calls.
// When the input ends, Readline returns line.EOF once. Cancelling ctx returns
// ctx.Err() and leaves the line as it is, so a later call resumes editing it.
func (rl *Readline) Readline(ctx context.Context) (line.Output, error) {
	rl.readMutex.Lock()
	defer rl.readMutex.Unlock()
	select {
	case <-rl.done:
		return nil, ErrClosed
	default:
	}
	rl.mutex.Lock()
	err := rl.err
	rl.mutex.Unlock()
	if err != nil {
		return nil, err
	}
	if err := rl.render(); err != nil {
		return nil, err
	}

	for {
		rl.mutex.Lock()
		chunks := rl.receiver.Chunks()
		if rl.chunksClosed {
			chunks = nil
		}
		rl.mutex.Unlock()
		if chunks == nil && len(rl.events) == 0 {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-rl.done:
			return nil, ErrClosed
		case e := <-rl.events:
			out, err := rl.handleEvent(e)
			if out != nil || err != nil {
				return out, err
			}
		case chunk, ok := <-chunks:
			if !ok {
				rl.mutex.Lock()
				rl.chunksClosed = true
				rl.mutex.Unlock()
				continue
			}
			if err := rl.printChunk(chunk); err != nil {
				return nil, err
			}
		case <-rl.historyCh:
			rl.mutex.Lock()
			rl.drainHistory()
			rl.mutex.Unlock()
		}
	}
}

func (rl *Readline) handleEvent(e eventOrError) (line.Output, error) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	event := e.event
	if e.err != nil {
		switch {
		case errors.Is(e.err, io.EOF):
			// End of input behaves like Ctrl-D.
			event = term.KeyEvent(ui.K('D', ui.Ctrl))
			rl.err = &IOError{"read", e.err}
		case term.IsSequenceError(e.err):
			logger.Println("undecodable input:", e.err)
			rl.err = &IOError{"decode", e.err}
			return nil, rl.err
		default:
			logger.Println("read error:", e.err)
			rl.err = &IOError{"read", e.err}
			return nil, rl.err
		}
	}
	rl.metrics.Event()
	out, err := rl.state.HandleEvent(event, rl.out)
	if err = rl.finish(err); err != nil {
		rl.err = err
		return nil, err
	}
	if out != nil {
		rl.metrics.Output(out)
	}
	return out, nil
}

func (rl *Readline) printChunk(chunk []byte) error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.metrics.Chunk(len(chunk))
	err := rl.finish(rl.state.PrintData(chunk, rl.out))
	if err != nil {
		rl.err = err
	}
	return err
}

// Must be called with rl.mutex held.
func (rl *Readline) drainHistory() {
	rl.historyMutex.Lock()
	entries := rl.pendingHistory
	rl.pendingHistory = nil
	rl.historyMutex.Unlock()
	h := rl.state.History()
	for _, entry := range entries {
		h.AddEntry(entry)
	}
	rl.metrics.HistorySize(h.Len())
}

// AddHistoryEntry adds an entry to the history. It never blocks, and the
// entry is added the next time the event loop runs.
func (rl *Readline) AddHistoryEntry(entry string) {
	rl.historyMutex.Lock()
	rl.pendingHistory = append(rl.pendingHistory, entry)
	rl.historyMutex.Unlock()
	select {
	case rl.historyCh <- struct{}{}:
	default:
	}
}

// HistoryEntries returns the history entries, oldest first, including the
// ones added by AddHistoryEntry but not yet processed.
func (rl *Readline) HistoryEntries() []string {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.drainHistory()
	return rl.state.History().Entries()
}

// SetHistoryEntries replaces the history with entries, oldest first.
func (rl *Readline) SetHistoryEntries(entries []string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.drainHistory()
	rl.state.History().SetEntries(entries)
	rl.metrics.HistorySize(rl.state.History().Len())
}

// SetMaxHistory changes the maximum number of history entries, dropping the
// oldest entries if needed.
func (rl *Readline) SetMaxHistory(n int) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.state.History().SetMaxSize(n)
	rl.metrics.HistorySize(rl.state.History().Len())
}

// ShouldPrintLineOn sets whether the prompt and the line are left on the
// screen when the line is submitted with Enter and when it is interrupted
// with Ctrl-C. Both default to true.
func (rl *Readline) ShouldPrintLineOn(enter, interrupt bool) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.state.PrintOnEnter = enter
	rl.state.PrintOnInterrupt = interrupt
}

// UpdatePrompt replaces the prompt and redraws the line.
func (rl *Readline) UpdatePrompt(prompt string) error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.finish(rl.state.UpdatePrompt(prompt, rl.out))
}

// Clear clears the screen and redraws the line at the top.
func (rl *Readline) Clear() error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.finish(rl.state.ClearScreen(rl.out))
}

// Flush prints all the chunks already sent by the Writers and flushes the
// terminal output. It does not wait for more chunks, so it is meant to be
// called after the Writers have flushed and outside of Readline, typically
// before exiting.
func (rl *Readline) Flush() error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	if !rl.chunksClosed {
	drain:
		for {
			select {
			case chunk, ok := <-rl.receiver.Chunks():
				if !ok {
					rl.chunksClosed = true
					break drain
				}
				rl.metrics.Chunk(len(chunk))
				if err := rl.state.PrintData(chunk, rl.out); err != nil {
					return rl.finish(err)
				}
			default:
				break drain
			}
		}
	}
	return rl.flush()
}

// Close stops reading from the terminal, makes the Writers fail with
// sharedwriter.ErrClosed, and restores the terminal. Only the first call has
// any effect; later calls return the same error.
func (rl *Readline) Close() error {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.tty.CloseReader()
		rl.receiver.Close()
		var errs []error
		rl.mutex.Lock()
		if err := rl.flush(); err != nil {
			errs = append(errs, err)
		}
		rl.mutex.Unlock()
		if err := rl.restore(); err != nil {
			logger.Println("failed to restore terminal:", err)
			errs = append(errs, &IOError{"restore", err})
		}
		rl.closeErr = errutil.Multi(errs...)
	})
	return rl.closeErr
}
