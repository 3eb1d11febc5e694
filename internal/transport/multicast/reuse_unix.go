//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package multicast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl lets several processes on one host share the group port.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var controlErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			controlErr = err
			return
		}
		// Not fatal: SO_REUSEADDR alone is enough on linux.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return controlErr
}
