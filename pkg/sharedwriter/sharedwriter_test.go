package sharedwriter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/elves/asyncline/pkg/must"
	"github.com/elves/asyncline/pkg/testutil"
)

func writeString(w *Writer, s string) error {
	_, err := w.Write([]byte(s))
	return err
}

func expectChunk(t *testing.T, r *Receiver, want string) {
	t.Helper()
	chunk := testutil.Recv(t, r.Chunks(), time.Second)
	if string(chunk) != want {
		t.Errorf("got chunk %q, want %q", chunk, want)
	}
}

func expectNoChunk(t *testing.T, r *Receiver) {
	t.Helper()
	select {
	case chunk, ok := <-r.Chunks():
		t.Errorf("got chunk %q (ok = %v), want none", chunk, ok)
	default:
	}
}

func TestWrite_BuffersUntilNewline(t *testing.T) {
	w, r := New(10)
	must.OK(writeString(w, "abc"))
	expectNoChunk(t, r)
	if w.Buffered() != 3 {
		t.Errorf("Buffered() = %d, want 3", w.Buffered())
	}
	must.OK(writeString(w, "def\n"))
	expectChunk(t, r, "abcdef\n")
	expectNoChunk(t, r)
	if w.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", w.Buffered())
	}
}

func TestWrite_OneChunkPerCompletedWrite(t *testing.T) {
	w, r := New(10)
	must.OK(writeString(w, "x\n"))
	must.OK(writeString(w, "y\n"))
	expectChunk(t, r, "x\n")
	expectChunk(t, r, "y\n")
}

func TestWrite_NewlineInTheMiddle(t *testing.T) {
	w, r := New(10)
	must.OK(writeString(w, "a\nb"))
	expectNoChunk(t, r)
	must.OK(writeString(w, "\n"))
	expectChunk(t, r, "a\nb\n")
}

func TestWrite_ReturnsLength(t *testing.T) {
	w, _ := New(10)
	n, err := w.Write([]byte("hello\n"))
	if n != 6 || err != nil {
		t.Errorf("Write -> (%d, %v), want (6, nil)", n, err)
	}
}

func TestWrite_WouldBlock(t *testing.T) {
	wouldBlock := 0
	w, r := New(2, OnWouldBlock(func() { wouldBlock++ }))
	must.OK(writeString(w, "1\n"))
	must.OK(writeString(w, "2\n"))
	must.OK(writeString(w, "3"))

	n, err := w.Write([]byte("\n"))
	if n != 0 || err != ErrWouldBlock {
		t.Fatalf("Write on full channel -> (%d, %v), want (0, ErrWouldBlock)", n, err)
	}
	if wouldBlock != 1 {
		t.Errorf("OnWouldBlock called %d times, want 1", wouldBlock)
	}
	if w.Buffered() != 1 {
		t.Errorf("Buffered() = %d after ErrWouldBlock, want 1", w.Buffered())
	}

	expectChunk(t, r, "1\n")
	must.OK(writeString(w, "\n"))
	expectChunk(t, r, "2\n")
	expectChunk(t, r, "3\n")
	expectNoChunk(t, r)
}

func TestWriteContext_WaitsForRoom(t *testing.T) {
	w, r := New(1)
	must.OK(writeString(w, "a\n"))

	done := make(chan error, 1)
	go func() {
		_, err := w.WriteContext(context.Background(), []byte("b\n"))
		done <- err
	}()
	select {
	case err := <-done:
		t.Fatalf("WriteContext returned %v before the channel had room", err)
	case <-time.After(testutil.Scaled(10 * time.Millisecond)):
	}

	expectChunk(t, r, "a\n")
	if err := testutil.Recv(t, done, time.Second); err != nil {
		t.Errorf("WriteContext -> %v, want nil", err)
	}
	expectChunk(t, r, "b\n")
}

func TestWriteContext_Cancel(t *testing.T) {
	w, r := New(1)
	must.OK(writeString(w, "a\n"))
	must.OK(writeString(w, "b"))

	ctx, cancel := context.WithTimeout(context.Background(), testutil.Scaled(10*time.Millisecond))
	defer cancel()
	n, err := w.WriteContext(ctx, []byte("c\n"))
	if n != 0 || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WriteContext -> (%d, %v), want (0, DeadlineExceeded)", n, err)
	}
	if w.Buffered() != 1 {
		t.Errorf("Buffered() = %d after cancellation, want 1", w.Buffered())
	}
	expectChunk(t, r, "a\n")
}

func TestWrite_DoesNotWaitForBlockedWriteContext(t *testing.T) {
	w, r := New(1)
	must.OK(writeString(w, "fill\n"))

	done := make(chan error, 1)
	go func() {
		_, err := w.WriteContext(context.Background(), []byte("waiting\n"))
		done <- err
	}()
	time.Sleep(testutil.Scaled(10 * time.Millisecond))

	wrote := make(chan error, 1)
	go func() { wrote <- writeString(w, "x\n") }()
	if err := testutil.Recv(t, wrote, time.Second); err != ErrWouldBlock {
		t.Errorf("Write behind a blocked WriteContext -> %v, want ErrWouldBlock", err)
	}

	expectChunk(t, r, "fill\n")
	if err := testutil.Recv(t, done, time.Second); err != nil {
		t.Errorf("WriteContext -> %v, want nil", err)
	}
	expectChunk(t, r, "waiting\n")
	must.OK(writeString(w, "x\n"))
	expectChunk(t, r, "x\n")
}

func TestWriteContext_CancelKeepsLaterBytesInOrder(t *testing.T) {
	w, r := New(1)
	must.OK(writeString(w, "fill\n"))
	must.OK(writeString(w, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.WriteContext(ctx, []byte("b\n"))
		done <- err
	}()
	time.Sleep(testutil.Scaled(10 * time.Millisecond))
	// Lands in the buffer while the chunk is waiting to be sent.
	must.OK(writeString(w, "c"))
	cancel()
	if err := testutil.Recv(t, done, time.Second); err != context.Canceled {
		t.Fatalf("WriteContext -> %v, want context.Canceled", err)
	}

	expectChunk(t, r, "fill\n")
	must.OK(writeString(w, "\n"))
	expectChunk(t, r, "ac\n")
}

func TestFlush(t *testing.T) {
	w, r := New(10)
	must.OK(w.Flush())
	expectNoChunk(t, r)

	must.OK(writeString(w, "partial"))
	must.OK(w.Flush())
	expectChunk(t, r, "partial")
	if w.Buffered() != 0 {
		t.Errorf("Buffered() = %d after Flush, want 0", w.Buffered())
	}
}

func TestFlushContext_Cancel(t *testing.T) {
	w, _ := New(1)
	must.OK(writeString(w, "a\n"))
	must.OK(writeString(w, "b"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.FlushContext(ctx); err != context.Canceled {
		t.Errorf("FlushContext -> %v, want context.Canceled", err)
	}
	if w.Buffered() != 1 {
		t.Errorf("Buffered() = %d, want 1", w.Buffered())
	}
}

func TestClone_IndependentBuffers(t *testing.T) {
	w, r := New(10)
	c := w.Clone()
	must.OK(writeString(w, "from w"))
	must.OK(writeString(c, "from c\n"))
	expectChunk(t, r, "from c\n")
	must.OK(writeString(w, "\n"))
	expectChunk(t, r, "from w\n")
	if c.Buffered() != 0 {
		t.Errorf("clone has %d buffered bytes, want 0", c.Buffered())
	}
}

func TestClose_LastWriterClosesChannel(t *testing.T) {
	w, r := New(10)
	c := w.Clone()
	must.OK(writeString(c, "bye\n"))
	must.OK(w.Close())
	must.OK(w.Close())
	expectChunk(t, r, "bye\n")
	expectNoChunk(t, r)

	must.OK(c.Close())
	if _, ok := <-r.Chunks(); ok {
		t.Errorf("channel still open after closing all writers")
	}
}

func TestClose_WriterUnusable(t *testing.T) {
	w, _ := New(10)
	c := w.Clone()
	must.OK(w.Close())
	if err := writeString(w, "x\n"); err != ErrWriterClosed {
		t.Errorf("Write after Close -> %v, want ErrWriterClosed", err)
	}
	if err := w.Flush(); err != ErrWriterClosed {
		t.Errorf("Flush after Close -> %v, want ErrWriterClosed", err)
	}
	if err := writeString(w.Clone(), "x\n"); err != ErrWriterClosed {
		t.Errorf("Write to clone of closed writer -> %v, want ErrWriterClosed", err)
	}
	must.OK(c.Close())
}

func TestReceiverClose(t *testing.T) {
	w, r := New(1)
	must.OK(writeString(w, "a\n"))

	done := make(chan error, 1)
	go func() {
		_, err := w.WriteContext(context.Background(), []byte("b\n"))
		done <- err
	}()
	time.Sleep(testutil.Scaled(10 * time.Millisecond))
	r.Close()
	r.Close()

	if err := testutil.Recv(t, done, time.Second); err != ErrClosed {
		t.Errorf("blocked WriteContext -> %v, want ErrClosed", err)
	}
	if err := writeString(w, "c\n"); err != ErrClosed {
		t.Errorf("Write after Receiver.Close -> %v, want ErrClosed", err)
	}
}

func TestConcurrentProducers(t *testing.T) {
	const producers, lines = 8, 100
	w, r := New(4)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		c := w.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.Close()
			for j := 0; j < lines; j++ {
				// Two writes per line, so partial lines would show up if
				// buffers were shared.
				must.OK1(c.WriteContext(context.Background(), []byte(fmt.Sprintf("%d:", i))))
				must.OK1(c.WriteContext(context.Background(), []byte(fmt.Sprintf("%d\n", j))))
			}
		}()
	}
	must.OK(w.Close())

	got := make([][]string, producers)
	for chunk := range r.Chunks() {
		var i, j int
		if _, err := fmt.Sscanf(string(chunk), "%d:%d\n", &i, &j); err != nil {
			t.Fatalf("malformed chunk %q", chunk)
		}
		got[i] = append(got[i], string(chunk))
	}
	wg.Wait()

	for i := range got {
		var want []string
		for j := 0; j < lines; j++ {
			want = append(want, fmt.Sprintf("%d:%d\n", i, j))
		}
		if diff := cmp.Diff(want, got[i]); diff != "" {
			t.Errorf("chunks from producer %d (-want +got):\n%s", i, diff)
		}
	}
}
