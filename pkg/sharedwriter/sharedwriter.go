// Package sharedwriter provides an io.Writer that many goroutines can use to
// send complete lines to a single consumer over a bounded channel.
//
// Each Writer buffers bytes until they end with a newline, and then sends
// the whole buffer as one chunk. Clones of a Writer share the channel but
// not the buffer, so producers never see each other's partial lines.
package sharedwriter

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the channel capacity used when New is called with a
// non-positive capacity.
const DefaultCapacity = 500

var (
	// ErrWouldBlock is returned by Write when the channel is full. Nothing
	// from the failed call is kept, so the same call can be retried.
	ErrWouldBlock = errors.New("sharedwriter: channel full")
	// ErrClosed is returned when the consumer has gone away.
	ErrClosed = errors.New("sharedwriter: consumer closed")
	// ErrWriterClosed is returned when using a Writer after Close.
	ErrWriterClosed = errors.New("sharedwriter: writer closed")
)

type pipe struct {
	ch       chan []byte
	done     chan struct{}
	doneOnce sync.Once

	onWouldBlock func()

	// Number of Writers not yet closed. The last one closes ch.
	refsMutex sync.Mutex
	refs      int
}

// Option configures New.
type Option func(*pipe)

// OnWouldBlock sets a function to call whenever Write fails with
// ErrWouldBlock. It is called with the Writer locked and must not use it.
func OnWouldBlock(f func()) Option {
	return func(p *pipe) { p.onWouldBlock = f }
}

// New creates a Writer and the Receiver for the channel it sends to.
func New(capacity int, opts ...Option) (*Writer, *Receiver) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &pipe{
		ch:           make(chan []byte, capacity),
		done:         make(chan struct{}),
		onWouldBlock: func() {},
		refs:         1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return newWriter(p, false), &Receiver{p}
}

// Writer is an io.Writer that sends complete lines to a Receiver. A single
// Writer is safe for concurrent use, but concurrent writers of partial lines
// should use their own clones.
type Writer struct {
	p *pipe
	// Held while a chunk of this Writer is being sent. Write only tries to
	// take it, so it never waits for a blocked WriteContext or Flush.
	sending chan struct{}

	mutex  sync.Mutex
	buf    []byte
	closed bool
}

func newWriter(p *pipe, closed bool) *Writer {
	return &Writer{p: p, sending: make(chan struct{}, 1), closed: closed}
}

// Write appends p to the buffer. If the buffer then ends with a newline, it
// is sent as one chunk without blocking. When the channel is full, or another
// call on the same Writer is waiting to send, the bytes of p are removed from
// the buffer again and Write returns ErrWouldBlock.
func (w *Writer) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err := w.check(); err != nil {
		return 0, err
	}
	n := len(w.buf)
	w.buf = append(w.buf, p...)
	if !endsWithNewline(w.buf) {
		return len(p), nil
	}
	select {
	case w.sending <- struct{}{}:
		defer func() { <-w.sending }()
	default:
		return w.wouldBlock(n)
	}
	select {
	case w.p.ch <- w.buf:
		w.buf = nil
		return len(p), nil
	case <-w.p.done:
		w.buf = w.buf[:n]
		return 0, ErrClosed
	default:
		return w.wouldBlock(n)
	}
}

// Must be called with the mutex held.
func (w *Writer) wouldBlock(n int) (int, error) {
	w.buf = w.buf[:n]
	w.p.onWouldBlock()
	return 0, ErrWouldBlock
}

// WriteContext is like Write, but waits for room in the channel instead of
// failing with ErrWouldBlock. If ctx is done first, the bytes of p are
// removed from the buffer and ctx.Err() is returned.
func (w *Writer) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := w.acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { <-w.sending }()
	w.mutex.Lock()
	if err := w.check(); err != nil {
		w.mutex.Unlock()
		return 0, err
	}
	n := len(w.buf)
	w.buf = append(w.buf, p...)
	if !endsWithNewline(w.buf) {
		w.mutex.Unlock()
		return len(p), nil
	}
	if err := w.send(ctx, n); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush sends the buffer even if it does not end with a newline, waiting for
// room in the channel. It does nothing if the buffer is empty.
func (w *Writer) Flush() error {
	return w.FlushContext(context.Background())
}

// FlushContext is like Flush, but gives up when ctx is done.
func (w *Writer) FlushContext(ctx context.Context) error {
	if err := w.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-w.sending }()
	w.mutex.Lock()
	if err := w.check(); err != nil {
		w.mutex.Unlock()
		return err
	}
	if len(w.buf) == 0 {
		w.mutex.Unlock()
		return nil
	}
	return w.send(ctx, len(w.buf))
}

// Waits until no other call on w is sending.
func (w *Writer) acquire(ctx context.Context) error {
	select {
	case w.sending <- struct{}{}:
		return nil
	case <-w.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sends the buffer, releasing the mutex while waiting. Must be called with
// the mutex and the sending slot held; the mutex is released on return. On
// failure the first keep bytes of the chunk are put back in front of whatever
// was written in the meantime.
func (w *Writer) send(ctx context.Context, keep int) error {
	chunk := w.buf
	w.buf = nil
	w.mutex.Unlock()

	var err error
	select {
	case w.p.ch <- chunk:
		return nil
	case <-w.p.done:
		err = ErrClosed
	case <-ctx.Done():
		err = ctx.Err()
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.closed {
		w.buf = append(chunk[:keep:keep], w.buf...)
	}
	return err
}

// Must be called with the mutex held.
func (w *Writer) check() error {
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case <-w.p.done:
		return ErrClosed
	default:
		return nil
	}
}

// Buffered returns the number of bytes not sent yet, excluding a chunk that
// is being sent.
func (w *Writer) Buffered() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.buf)
}

// Clone returns a new Writer with an empty buffer that sends to the same
// channel. Cloning a closed Writer returns a closed Writer.
func (w *Writer) Clone() *Writer {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return newWriter(w.p, true)
	}
	w.p.refsMutex.Lock()
	defer w.p.refsMutex.Unlock()
	w.p.refs++
	return newWriter(w.p, false)
}

// Close releases the Writer, discarding anything not sent yet. When all
// clones of a Writer are closed, the Receiver's channel is closed. Closing a
// Writer more than once has no effect.
//
// Close waits for a WriteContext or Flush on the same Writer that is waiting
// for room in the channel.
func (w *Writer) Close() error {
	w.sending <- struct{}{}
	defer func() { <-w.sending }()
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.buf = nil
	w.p.refsMutex.Lock()
	defer w.p.refsMutex.Unlock()
	w.p.refs--
	if w.p.refs == 0 {
		close(w.p.ch)
	}
	return nil
}

func endsWithNewline(p []byte) bool {
	return bytes.HasSuffix(p, []byte{'\n'})
}

// Receiver is the consuming end of the channel.
type Receiver struct{ p *pipe }

// Chunks returns the channel of chunks. It is closed when all Writers are
// closed.
func (r *Receiver) Chunks() <-chan []byte { return r.p.ch }

// Close tells all Writers that the consumer has gone away; their subsequent
// and blocked calls fail with ErrClosed. Closing more than once has no effect.
func (r *Receiver) Close() {
	r.p.doneOnce.Do(func() { close(r.p.done) })
}
