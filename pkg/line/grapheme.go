package line

import "github.com/rivo/uniseg"

// boundaries returns the byte offsets of the grapheme cluster boundaries of
// s. The first element is always 0 and the last is always len(s).
func boundaries(s string) []int {
	b := []int{0}
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		_, to := g.Positions()
		b = append(b, to)
	}
	return b
}

// GraphemeCount returns the number of grapheme clusters in s.
func GraphemeCount(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

func lastCluster(s string) string {
	b := boundaries(s)
	if len(b) < 2 {
		return ""
	}
	return s[b[len(b)-2]:]
}
