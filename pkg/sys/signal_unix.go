//go:build unix

package sys

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

func notifyResize() (<-chan os.Signal, func()) {
	sigCh := make(chan os.Signal, sigsChanBufferSize)
	signal.Notify(sigCh, unix.SIGWINCH)
	return sigCh, func() { signal.Stop(sigCh) }
}
