// Package wcwidth provides functions for determining the display width of
// strings on a terminal.
package wcwidth

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// OfRune returns the column width of a rune.
func OfRune(r rune) int {
	return runewidth.RuneWidth(r)
}

// OfCluster returns the column width of a single grapheme cluster.
func OfCluster(cluster string) int {
	if r, ok := singleRune(cluster); ok {
		return OfRune(r)
	}
	return uniseg.StringWidth(cluster)
}

func singleRune(s string) (rune, bool) {
	var first rune
	n := 0
	for _, r := range s {
		if n == 0 {
			first = r
		}
		n++
		if n > 1 {
			return 0, false
		}
	}
	return first, n == 1
}

// Of returns the column width of a string, computed cluster by cluster.
func Of(s string) int {
	w := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		w += OfCluster(g.Str())
	}
	return w
}

// OfStyled returns the column width of a string that may contain ANSI escape
// sequences, such as a colored prompt. The escape sequences occupy no columns.
func OfStyled(s string) int {
	if !strings.ContainsRune(s, '\x1b') {
		return Of(s)
	}
	return Of(ansi.Strip(s))
}
