//go:build !(linux || darwin || freebsd)

package registry

import "errors"

func statfs(string) (uint64, uint64, error) {
	return 0, 0, errors.New("storage capacity is not supported on this platform")
}
