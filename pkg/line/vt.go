package line

import (
	"bytes"
	"fmt"
)

const (
	clearToEnd  = "\033[J"
	clearScreen = "\033[2J\033[H"
)

func cursorUp(buf *bytes.Buffer, n int) {
	if n > 0 {
		fmt.Fprintf(buf, "\033[%dA", n)
	}
}

func cursorDown(buf *bytes.Buffer, n int) {
	if n > 0 {
		fmt.Fprintf(buf, "\033[%dB", n)
	}
}

func cursorRight(buf *bytes.Buffer, n int) {
	if n > 0 {
		fmt.Fprintf(buf, "\033[%dC", n)
	}
}
