package usbmux

import (
	"context"
	"net"
	"runtime"
)

const (
	// darwinSocketPath is the well-known UNIX domain socket the daemon
	// listens on (spec.md §4.4, §6 "Environment": "its path/port is a
	// platform constant").
	darwinSocketPath = "/var/run/usbmuxd"

	// otherTCPAddr is the loopback relay address used on non-Darwin hosts,
	// where the daemon (or a compatible relay) exposes the same protocol
	// over TCP instead of a UNIX socket.
	otherTCPAddr = "127.0.0.1:27015"
)

// dialDaemon opens a fresh connection to the local mux daemon's
// administrative socket, UNIX domain on Darwin and TCP loopback elsewhere,
// per spec.md §4.4/§6.
func dialDaemon(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	if runtime.GOOS == "darwin" {
		return d.DialContext(ctx, "unix", darwinSocketPath)
	}
	return d.DialContext(ctx, "tcp", otherTCPAddr)
}
