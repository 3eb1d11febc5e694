//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package multicast

import "syscall"

func reuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
