//go:build !unix

package term

import (
	"errors"
	"os"
)

func newReader(*os.File) (Reader, error) {
	return nil, errors.New("terminal input is not supported on this platform")
}
