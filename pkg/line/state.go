// Package line implements the editing and rendering state of a single line of
// input that shares the terminal with asynchronous output.
//
// The prompt and the line being edited may wrap over several rows. All
// cursor movements are relative: the state remembers the display column of
// the cursor counted from the start of the prompt, and every row offset is
// derived from it and the terminal width.
package line

import (
	"bytes"
	"io"
	"strings"

	"github.com/elves/asyncline/pkg/history"
	"github.com/elves/asyncline/pkg/term"
	"github.com/elves/asyncline/pkg/ui"
	"github.com/elves/asyncline/pkg/wcwidth"
)

// State is the editing state of one line. It is not safe for concurrent use.
type State struct {
	// PrintOnEnter controls whether a submitted line is left on the screen
	// together with its prompt.
	PrintOnEnter bool
	// PrintOnInterrupt controls whether a line cancelled with Ctrl-C is left
	// on the screen together with its prompt.
	PrintOnInterrupt bool
	// Emacs enables Ctrl-A and Ctrl-E as Home and End.
	Emacs bool

	buffer string
	// Index of the grapheme cluster the cursor is before.
	cursor int
	// Display column of the cursor, counted from the start of the prompt.
	column int
	// The cluster the last inserted rune went into. Empty when the last event
	// was not an insertion.
	cluster string

	prompt      string
	promptWidth int

	width, height int

	// Whether the prompt is currently on the screen.
	rendered bool
	// Width of the unterminated tail of the last external output on its last
	// row, and whether that output ended with a newline.
	lastLineLen       int
	lastLineCompleted bool

	history *history.History
}

// New creates a State for a terminal of the given size. Nothing is written
// until the first call to Render.
func New(prompt string, width, height int) *State {
	s := &State{
		PrintOnEnter:      true,
		PrintOnInterrupt:  true,
		prompt:            prompt,
		promptWidth:       wcwidth.OfStyled(prompt),
		width:             max(width, 1),
		height:            height,
		lastLineCompleted: true,
		history:           history.New(),
	}
	s.updateColumn()
	return s
}

// Buffer returns the content of the line being edited.
func (s *State) Buffer() string { return s.buffer }

// Cursor returns the cursor position as an index of grapheme clusters.
func (s *State) Cursor() int { return s.cursor }

// Column returns the display column of the cursor, counted from the start of
// the prompt. It may exceed the terminal width when the line wraps.
func (s *State) Column() int { return s.column }

// Prompt returns the prompt.
func (s *State) Prompt() string { return s.prompt }

// Size returns the terminal size the state renders for.
func (s *State) Size() (width, height int) { return s.width, s.height }

// Rendered returns whether the prompt is currently on the screen.
func (s *State) Rendered() bool { return s.rendered }

// History returns the history navigated with Up and Down.
func (s *State) History() *history.History { return s.history }

func (s *State) updateColumn() {
	b := boundaries(s.buffer)
	s.cursor = min(max(s.cursor, 0), len(b)-1)
	s.column = s.promptWidth + wcwidth.OfStyled(s.buffer[:b[s.cursor]])
}

func (s *State) endColumn() int {
	return s.promptWidth + wcwidth.OfStyled(s.buffer)
}

func (s *State) setCursor(i int) {
	s.cursor = i
	s.updateColumn()
}

// Number of rows below the first one that a column is on.
func (s *State) lineHeight(col int) int {
	return col / s.width
}

func (s *State) moveToBeginning(buf *bytes.Buffer, col int) {
	buf.WriteString("\r")
	cursorUp(buf, s.lineHeight(col))
}

func (s *State) moveFromBeginning(buf *bytes.Buffer, col int) {
	cursorDown(buf, s.lineHeight(col))
	cursorRight(buf, col%s.width)
}

func (s *State) clear(buf *bytes.Buffer) {
	if !s.rendered {
		return
	}
	s.moveToBeginning(buf, s.column)
	buf.WriteString(clearToEnd)
	s.rendered = false
}

func (s *State) render(buf *bytes.Buffer) {
	buf.WriteString(s.prompt)
	buf.WriteString(s.buffer)
	end := s.endColumn()
	if end > 0 && end%s.width == 0 {
		// Leave the pending-wrap state, so that the cursor is on the row
		// lineHeight(end) regardless of how the terminal handles it.
		buf.WriteString(" \r")
	}
	s.moveToBeginning(buf, end)
	s.moveFromBeginning(buf, s.column)
	s.rendered = true
}

func write(w io.Writer, buf *bytes.Buffer) error {
	if buf.Len() == 0 {
		return nil
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Clear erases the prompt and the line from the screen, leaving the cursor
// where the prompt started. It does nothing if they are not on the screen.
func (s *State) Clear(w io.Writer) error {
	var buf bytes.Buffer
	s.clear(&buf)
	return write(w, &buf)
}

// Render writes the prompt and the line at the cursor, and places the
// cursor. It assumes that the cursor is where the prompt should start.
func (s *State) Render(w io.Writer) error {
	var buf bytes.Buffer
	s.render(&buf)
	return write(w, &buf)
}

// ClearAndRender redraws the prompt and the line.
func (s *State) ClearAndRender(w io.Writer) error {
	var buf bytes.Buffer
	s.clear(&buf)
	s.render(&buf)
	return write(w, &buf)
}

// ClearScreen erases the entire screen and redraws the prompt and the line at
// the top.
func (s *State) ClearScreen(w io.Writer) error {
	var buf bytes.Buffer
	s.clearScreen(&buf)
	return write(w, &buf)
}

func (s *State) clearScreen(buf *bytes.Buffer) {
	buf.WriteString(clearScreen)
	s.rendered = false
	s.lastLineLen = 0
	s.lastLineCompleted = true
	s.render(buf)
}

// UpdatePrompt replaces the prompt and redraws.
func (s *State) UpdatePrompt(prompt string, w io.Writer) error {
	var buf bytes.Buffer
	wasRendered := s.rendered
	s.clear(&buf)
	s.prompt = prompt
	s.promptWidth = wcwidth.OfStyled(prompt)
	s.updateColumn()
	if wasRendered {
		s.render(&buf)
	}
	return write(w, &buf)
}

// Resize updates the terminal size and redraws.
func (s *State) Resize(width, height int, w io.Writer) error {
	var buf bytes.Buffer
	s.resize(&buf, width, height)
	return write(w, &buf)
}

func (s *State) resize(buf *bytes.Buffer, width, height int) {
	wasRendered := s.rendered
	s.clear(buf)
	s.width, s.height = max(width, 1), height
	s.lastLineLen %= s.width
	if wasRendered {
		s.render(buf)
	}
}

// Print writes external output above the prompt. See PrintData.
func (s *State) Print(text string, w io.Writer) error {
	return s.PrintData([]byte(text), w)
}

// PrintData writes external output above the prompt. Every newline in data
// is followed by a carriage return. If data does not end with a newline, the
// prompt is moved to the next row, and the next call continues the
// unterminated row where data left off.
func (s *State) PrintData(data []byte, w io.Writer) error {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	wasRendered := s.rendered
	s.clear(&buf)

	if !s.lastLineCompleted {
		cursorUp(&buf, 1)
		buf.WriteString("\r")
		cursorRight(&buf, s.lastLineLen)
	}

	resumeCol := 0
	if !s.lastLineCompleted {
		resumeCol = s.lastLineLen
	}
	rest := data
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		buf.Write(rest[:i+1])
		buf.WriteString("\r")
		rest = rest[i+1:]
		resumeCol = 0
	}

	if len(rest) > 0 {
		buf.Write(rest)
		end := resumeCol + wcwidth.OfStyled(string(rest))
		s.lastLineLen = end % s.width
		if end > 0 && s.lastLineLen == 0 {
			buf.WriteString(" \r")
		}
		buf.WriteString("\r\n")
		s.lastLineCompleted = false
	} else {
		s.lastLineLen = 0
		s.lastLineCompleted = true
	}

	if wasRendered {
		s.render(&buf)
	}
	return write(w, &buf)
}

// HandleEvent applies an event. It returns a non-nil Output when the event
// submits or cancels the line; otherwise the event only changes the line and
// the display.
func (s *State) HandleEvent(event term.Event, w io.Writer) (Output, error) {
	if k, ok := event.(term.KeyEvent); ok && isInsertion(ui.Key(k)) {
		var buf bytes.Buffer
		s.insert(&buf, k.Rune)
		return nil, write(w, &buf)
	}
	s.cluster = ""

	switch event := event.(type) {
	case term.KeyEvent:
		return s.handleKey(ui.Key(event), w)
	case term.ResizeEvent:
		return nil, s.Resize(event.Width, event.Height, w)
	}
	return nil, nil
}

func isInsertion(k ui.Key) bool {
	return k.Mod&^ui.Shift == 0 && k.Rune >= 0x20 && k.Rune != ui.Backspace
}

func (s *State) insert(buf *bytes.Buffer, r rune) {
	s.clear(buf)
	if s.cluster == "" && s.cursor > 0 {
		b := boundaries(s.buffer)
		s.cluster = s.buffer[b[s.cursor-1]:b[s.cursor]]
	}
	before := GraphemeCount(s.cluster)
	s.cluster += string(r)
	after := GraphemeCount(s.cluster)

	pos := boundaries(s.buffer)[s.cursor]
	s.buffer = s.buffer[:pos] + string(r) + s.buffer[pos:]
	if after != before {
		s.cursor++
		s.cluster = lastCluster(s.cluster)
	}
	s.updateColumn()
	s.render(buf)
}

func (s *State) handleKey(k ui.Key, w io.Writer) (Output, error) {
	var buf bytes.Buffer
	var out Output

	switch k {
	case ui.K(ui.Enter):
		if s.PrintOnEnter {
			if err := s.Print(s.prompt+s.buffer+"\n", w); err != nil {
				return nil, err
			}
		}
		text := s.buffer
		s.clear(&buf)
		s.buffer = ""
		s.setCursor(0)
		s.render(&buf)
		s.history.ResetPosition()
		out = Line(text)
	case ui.K('D', ui.Ctrl):
		if s.rendered {
			// Leave the line on the screen and move below it.
			end := s.endColumn()
			s.moveToBeginning(&buf, s.column)
			s.moveFromBeginning(&buf, end)
			if end > 0 && end%s.width == 0 {
				// Already on the row after the content.
				buf.WriteString("\r")
			} else {
				buf.WriteString("\r\n")
			}
			s.rendered = false
		}
		s.lastLineLen = 0
		s.lastLineCompleted = true
		out = EOF{}
	case ui.K('C', ui.Ctrl):
		if s.PrintOnInterrupt {
			if err := s.Print(s.prompt+s.buffer, w); err != nil {
				return nil, err
			}
		}
		s.clear(&buf)
		s.buffer = ""
		s.setCursor(0)
		s.render(&buf)
		out = Interrupted{}
	case ui.K('L', ui.Ctrl):
		s.clearScreen(&buf)
	case ui.K('U', ui.Ctrl):
		if s.cursor > 0 {
			s.clear(&buf)
			s.buffer = s.buffer[boundaries(s.buffer)[s.cursor]:]
			s.setCursor(0)
			s.render(&buf)
		}
	case ui.K('W', ui.Ctrl):
		if s.cursor > 0 {
			b := boundaries(s.buffer)
			start := s.wordLeft()
			s.clear(&buf)
			s.buffer = s.buffer[:b[start]] + s.buffer[b[s.cursor]:]
			s.setCursor(start)
			s.render(&buf)
		}
	case ui.K(ui.Backspace):
		if s.cursor > 0 {
			b := boundaries(s.buffer)
			s.clear(&buf)
			s.buffer = s.buffer[:b[s.cursor-1]] + s.buffer[b[s.cursor]:]
			s.setCursor(s.cursor - 1)
			s.render(&buf)
		}
	case ui.K(ui.Delete):
		if b := boundaries(s.buffer); s.cursor < len(b)-1 {
			s.clear(&buf)
			s.buffer = s.buffer[:b[s.cursor]] + s.buffer[b[s.cursor+1]:]
			s.updateColumn()
			s.render(&buf)
		}
	case ui.K(ui.Left):
		s.moveCursor(&buf, s.cursor-1)
	case ui.K(ui.Right):
		s.moveCursor(&buf, s.cursor+1)
	case ui.K(ui.Left, ui.Ctrl):
		s.moveCursor(&buf, s.wordLeft())
	case ui.K(ui.Right, ui.Ctrl):
		s.moveCursor(&buf, s.wordRight())
	case ui.K(ui.Home):
		s.moveCursor(&buf, 0)
	case ui.K(ui.End):
		s.moveCursor(&buf, GraphemeCount(s.buffer))
	case ui.K('A', ui.Ctrl):
		if s.Emacs {
			s.moveCursor(&buf, 0)
		}
	case ui.K('E', ui.Ctrl):
		if s.Emacs {
			s.moveCursor(&buf, GraphemeCount(s.buffer))
		}
	case ui.K(ui.Up):
		if text, ok := s.history.SearchNext(); ok {
			s.replaceBuffer(&buf, text)
		}
	case ui.K(ui.Down):
		if text, ok := s.history.SearchPrevious(); ok {
			s.replaceBuffer(&buf, text)
		}
	}
	return out, write(w, &buf)
}

func (s *State) moveCursor(buf *bytes.Buffer, i int) {
	if !s.rendered {
		s.setCursor(i)
		return
	}
	s.moveToBeginning(buf, s.column)
	s.setCursor(i)
	s.moveFromBeginning(buf, s.column)
}

func (s *State) replaceBuffer(buf *bytes.Buffer, text string) {
	wasRendered := s.rendered
	s.clear(buf)
	s.buffer = text
	s.setCursor(GraphemeCount(text))
	if wasRendered {
		s.render(buf)
	}
}

// wordLeft returns the cursor position after skipping the spaces before the
// cursor and then the word before them.
func (s *State) wordLeft() int {
	clusters := s.clusters()
	i := s.cursor
	for i > 0 && clusters[i-1] == " " {
		i--
	}
	for i > 0 && clusters[i-1] != " " {
		i--
	}
	return i
}

// wordRight returns the cursor position after skipping the spaces after the
// cursor and then the word after them.
func (s *State) wordRight() int {
	clusters := s.clusters()
	i := s.cursor
	for i < len(clusters) && clusters[i] == " " {
		i++
	}
	for i < len(clusters) && clusters[i] != " " {
		i++
	}
	return i
}

func (s *State) clusters() []string {
	b := boundaries(s.buffer)
	clusters := make([]string, len(b)-1)
	for i := range clusters {
		clusters[i] = s.buffer[b[i]:b[i+1]]
	}
	return clusters
}

// String returns the prompt followed by the line, with a "|" at the cursor.
// It is only used in test failure messages.
func (s *State) String() string {
	pos := boundaries(s.buffer)[s.cursor]
	return strings.Join([]string{s.prompt, s.buffer[:pos], "|", s.buffer[pos:]}, "")
}
