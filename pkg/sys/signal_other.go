//go:build !unix

package sys

import "os"

func notifyResize() (<-chan os.Signal, func()) {
	return make(chan os.Signal), func() {}
}
