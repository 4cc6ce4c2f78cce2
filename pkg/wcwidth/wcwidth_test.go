package wcwidth

import (
	"testing"

	"github.com/elves/asyncline/pkg/tt"
)

var Args = tt.Args

func TestOf(t *testing.T) {
	tt.Test(t, tt.Fn("Of", Of), tt.Table{
		Args("\u0301").Rets(0), // Combining acute accent
		Args("a").Rets(1),
		Args("Ω").Rets(1),
		Args("好").Rets(2),
		Args("か").Rets(2),

		Args("abc").Rets(3),
		Args("你好").Rets(4),
		// A base letter with a combining mark is one cluster of width 1.
		Args("e\u0301").Rets(1),
		Args("ae\u0301b").Rets(3),
	})
}

func TestOfRune(t *testing.T) {
	tt.Test(t, tt.Fn("OfRune", OfRune), tt.Table{
		Args('a').Rets(1),
		Args('好').Rets(2),
		Args('\u0301').Rets(0),
	})
}

func TestOfStyled(t *testing.T) {
	tt.Test(t, tt.Fn("OfStyled", OfStyled), tt.Table{
		Args("> ").Rets(2),
		Args("\x1b[1;32m> \x1b[0m").Rets(2),
		Args("\x1b[31m你\x1b[m好").Rets(4),
	})
}
