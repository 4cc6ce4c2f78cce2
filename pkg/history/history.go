// Package history implements a bounded in-memory history of submitted lines
// with a navigation cursor.
package history

// DefaultMaxSize is the capacity of a History created by New.
const DefaultMaxSize = 1000

// History is a bounded sequence of lines. Navigation positions count steps
// back from the newest entry; -1 means the user is not navigating.
//
// A History is not safe for concurrent use.
type History struct {
	// Oldest first.
	entries  []string
	maxSize  int
	position int
}

// New returns an empty History with DefaultMaxSize.
func New() *History {
	return &History{maxSize: DefaultMaxSize, position: -1}
}

// AddEntry adds line as the newest entry. It does nothing if line is empty or
// equal to the newest entry. Otherwise it evicts the oldest entries beyond
// the maximum size and resets the navigation position.
func (h *History) AddEntry(line string) {
	if line == "" || (len(h.entries) > 0 && h.entries[len(h.entries)-1] == line) {
		return
	}
	h.entries = append(h.entries, line)
	h.trim()
	h.position = -1
}

func (h *History) trim() {
	if n := len(h.entries) - h.maxSize; n > 0 {
		h.entries = append(h.entries[:0:0], h.entries[n:]...)
	}
}

// SetMaxSize changes the capacity, evicting the oldest entries if needed. It
// also resets the navigation position.
func (h *History) SetMaxSize(n int) {
	if n < 0 {
		n = 0
	}
	h.maxSize = n
	h.trim()
	h.position = -1
}

// MaxSize returns the capacity.
func (h *History) MaxSize() int { return h.maxSize }

// Len returns the number of stored entries.
func (h *History) Len() int { return len(h.entries) }

// Position returns the navigation position, or -1 when not navigating.
func (h *History) Position() int { return h.position }

// ResetPosition stops navigation.
func (h *History) ResetPosition() { h.position = -1 }

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// SetEntries replaces all entries with the given ones, oldest first. They are
// added one by one with AddEntry, so empty lines and consecutive duplicates
// are dropped and the capacity is respected.
func (h *History) SetEntries(entries []string) {
	h.entries = nil
	for _, entry := range entries {
		h.AddEntry(entry)
	}
	h.position = -1
}

// SearchNext moves one step back in history (towards older entries) and
// returns the entry there. At the oldest entry it keeps returning that entry.
// It returns false only when the history is empty.
func (h *History) SearchNext() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.position < len(h.entries)-1 {
		h.position++
	}
	return h.at(h.position), true
}

// SearchPrevious moves one step forward in history (towards newer entries).
// Stepping past the newest entry ends navigation and returns an empty string
// once; when not navigating it returns false.
func (h *History) SearchPrevious() (string, bool) {
	switch {
	case h.position < 0:
		return "", false
	case h.position == 0:
		h.position = -1
		return "", true
	default:
		h.position--
		return h.at(h.position), true
	}
}

func (h *History) at(pos int) string {
	return h.entries[len(h.entries)-1-pos]
}
