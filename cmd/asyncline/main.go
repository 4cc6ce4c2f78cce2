// Command asyncline is a demo of the readline package: a command prompt that
// keeps working while timers print above it.
package main

import (
	"os"

	"github.com/elves/asyncline/pkg/prog"
)

func main() {
	os.Exit(prog.Execute())
}
