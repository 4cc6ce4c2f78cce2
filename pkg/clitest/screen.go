package clitest

import (
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/elves/asyncline/pkg/wcwidth"
)

// Screen is a minimal model of a VT100-compatible terminal screen. It
// understands the subset of control sequences written by this module: CR, LF,
// BS, relative cursor movements, CUP, ED and SGR (which is ignored).
//
// Like xterm, it delays wrapping after the last column until the next
// printable character arrives. LF at the bottom row scrolls the screen; rows
// scrolled off the top are kept in a scrollback, so that tests can inspect all
// output.
type Screen struct {
	mutex  sync.Mutex
	width  int
	height int
	// All rows, including the scrollback. The visible screen is the last
	// height rows.
	rows [][]string
	// Cursor position, relative to the visible screen.
	row, col int
	// Set after printing in the last column.
	pendingWrap bool
	// Bytes of an incomplete escape sequence or UTF-8 encoding.
	pending []byte
	// Notified after each Write.
	updates chan struct{}
}

// NewScreen creates a blank Screen with the cursor at the top left corner.
func NewScreen(width, height int) *Screen {
	s := &Screen{width: width, height: height, updates: make(chan struct{}, 1)}
	for i := 0; i < height; i++ {
		s.rows = append(s.rows, s.blankRow())
	}
	return s
}

func (s *Screen) blankRow() []string {
	row := make([]string, s.width)
	for i := range row {
		row[i] = " "
	}
	return row
}

func (s *Screen) top() int { return len(s.rows) - s.height }

func (s *Screen) cell(row, col int) *string { return &s.rows[s.top()+row][col] }

// Write interprets p. It never fails.
func (s *Screen) Write(p []byte) (int, error) {
	s.mutex.Lock()
	data := append(s.pending, p...)
	s.pending = nil
	for len(data) > 0 {
		n := s.consume(data)
		if n == 0 {
			// Incomplete; wait for more bytes.
			s.pending = append([]byte(nil), data...)
			break
		}
		data = data[n:]
	}
	s.mutex.Unlock()
	select {
	case s.updates <- struct{}{}:
	default:
	}
	return len(p), nil
}

// consume interprets one character or control sequence at the start of data
// and returns the number of bytes used, or 0 if data is incomplete.
func (s *Screen) consume(data []byte) int {
	switch data[0] {
	case '\r':
		s.col = 0
		s.pendingWrap = false
		return 1
	case '\n':
		s.lineFeed()
		s.pendingWrap = false
		return 1
	case '\b':
		if s.col > 0 {
			s.col--
		}
		s.pendingWrap = false
		return 1
	case '\033':
		return s.escape(data)
	}
	if !utf8.FullRune(data) {
		return 0
	}
	r, n := utf8.DecodeRune(data)
	if r >= 0x20 {
		s.put(r)
	}
	return n
}

func (s *Screen) lineFeed() {
	if s.row < s.height-1 {
		s.row++
	} else {
		s.rows = append(s.rows, s.blankRow())
	}
}

func (s *Screen) put(r rune) {
	w := wcwidth.OfRune(r)
	if w == 0 {
		// Combine with the previous cell.
		col := s.col - 1
		if s.pendingWrap {
			col = s.col
		}
		if col >= 0 {
			*s.cell(s.row, col) += string(r)
		}
		return
	}
	if s.pendingWrap || s.col+w > s.width {
		s.col = 0
		s.lineFeed()
		s.pendingWrap = false
	}
	*s.cell(s.row, s.col) = string(r)
	for i := 1; i < w; i++ {
		*s.cell(s.row, s.col+i) = ""
	}
	if s.col+w >= s.width {
		s.col = s.width - 1
		s.pendingWrap = true
	} else {
		s.col += w
	}
}

func (s *Screen) escape(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	if data[1] != '[' {
		// Unsupported; drop the ESC.
		return 1
	}
	i := 2
	for i < len(data) && (data[i] == ';' || data[i] == '?' || ('0' <= data[i] && data[i] <= '9')) {
		i++
	}
	if i == len(data) {
		return 0
	}
	params := string(data[2:i])
	s.csi(params, data[i])
	return i + 1
}

func (s *Screen) csi(params string, final byte) {
	if strings.HasPrefix(params, "?") {
		// Private modes, such as cursor visibility.
		return
	}
	var nums []int
	if params != "" {
		for _, field := range strings.Split(params, ";") {
			n, _ := strconv.Atoi(field)
			nums = append(nums, n)
		}
	}
	arg := func(i, def int) int {
		if i < len(nums) && nums[i] != 0 {
			return nums[i]
		}
		return def
	}
	s.pendingWrap = s.pendingWrap && final == 'm'
	switch final {
	case 'A':
		s.row = max(s.row-arg(0, 1), 0)
	case 'B':
		s.row = min(s.row+arg(0, 1), s.height-1)
	case 'C':
		s.col = min(s.col+arg(0, 1), s.width-1)
	case 'D':
		s.col = max(s.col-arg(0, 1), 0)
	case 'H':
		s.row = min(arg(0, 1), s.height) - 1
		s.col = min(arg(1, 1), s.width) - 1
	case 'J':
		switch arg(0, 0) {
		case 0:
			for col := s.col; col < s.width; col++ {
				*s.cell(s.row, col) = " "
			}
			for row := s.row + 1; row < s.height; row++ {
				s.rows[s.top()+row] = s.blankRow()
			}
		case 2:
			for row := 0; row < s.height; row++ {
				s.rows[s.top()+row] = s.blankRow()
			}
		}
	}
}

// Updates returns a channel that receives a value after writes.
func (s *Screen) Updates() <-chan struct{} { return s.updates }

// Cursor returns the position of the cursor on the visible screen.
func (s *Screen) Cursor() (row, col int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.row, s.col
}

// Lines returns the content of the visible screen, with trailing spaces on
// each row and trailing empty rows removed.
func (s *Screen) Lines() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return trimRows(s.rows[s.top():])
}

// Scrollback returns every row ever written, including those scrolled off the
// top, in the same format as Lines.
func (s *Screen) Scrollback() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return trimRows(s.rows)
}

func trimRows(rows [][]string) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.TrimRight(strings.Join(row, ""), " ")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Snapshot returns the visible screen as a string, with "|" inserted at the
// cursor. Trailing spaces and empty rows after the cursor are removed.
func (s *Screen) Snapshot() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var lines []string
	for i, row := range s.rows[s.top():] {
		if i == s.row {
			col := s.col
			if s.pendingWrap {
				col = s.width
			}
			cells := append(append(append([]string(nil), row[:col]...), "|"), row[col:]...)
			lines = append(lines, strings.TrimRight(strings.Join(cells, ""), " "))
		} else {
			lines = append(lines, strings.TrimRight(strings.Join(row, ""), " "))
		}
	}
	for len(lines) > s.row+1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// SetWidth changes the width of the screen. Existing rows are truncated or
// padded; they are not reflowed.
func (s *Screen) SetWidth(width int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i, row := range s.rows {
		if len(row) > width {
			s.rows[i] = row[:width]
		}
		for len(s.rows[i]) < width {
			s.rows[i] = append(s.rows[i], " ")
		}
	}
	s.width = width
	s.col = min(s.col, width-1)
	s.pendingWrap = false
}
