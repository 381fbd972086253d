//go:build !unix

package server

import "syscall"

func socketBufferControl(int) func(network, address string, c syscall.RawConn) error {
	return nil
}
