//go:build !linux

package transport

import (
	"errors"
	"os"
)

func sendEvent(_ *os.File, _ []byte) error {
	return errors.New("MTP gadget events are only supported on linux")
}
