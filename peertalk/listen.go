//go:build unix

package peertalk

import (
	"context"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenReuseAddr binds ipv4:port with SO_REUSEADDR set before bind,
// exactly as spec.md §4.3 "listen" requires, using
// golang.org/x/sys/unix directly from a net.ListenConfig.Control callback
// rather than relying on any implicit default from the net package.
func listenReuseAddr(ctx context.Context, ipv4 string, port int) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(ctx, "tcp4", net.JoinHostPort(ipv4, strconv.Itoa(port)))
}
