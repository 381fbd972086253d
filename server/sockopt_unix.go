//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// socketBufferControl enlarges the kernel send and receive buffers so bursts
// of fragments are not dropped before the read loop drains them.
func socketBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if size <= 0 {
			return nil
		}
		var sysErr error
		err := c.Control(func(fd uintptr) {
			sysErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
			if sysErr != nil {
				return
			}
			sysErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
		})
		if err != nil {
			return err
		}
		return sysErr
	}
}
