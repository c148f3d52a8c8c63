//go:build !unix

package peertalk

import (
	"context"
	"net"
	"strconv"
)

// listenReuseAddr is the non-Unix fallback: golang.org/x/sys/unix has no
// portable SO_REUSEADDR knob off Unix, so this relies on the platform's own
// listen default.
func listenReuseAddr(ctx context.Context, ipv4 string, port int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp4", net.JoinHostPort(ipv4, strconv.Itoa(port)))
}
