package usbmux

import (
	"bufio"
	"context"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon stands in for usbmuxd on otherTCPAddr: it answers Listen with
// Result 0 then emits one Attached notification, and answers Connect with
// Result 0 followed by a few bytes of "device" data, exactly as spec.md
// §4.4 describes the two request shapes.
func startFakeDaemon(t *testing.T) net.Listener {
	t.Helper()
	if runtime.GOOS == "darwin" {
		t.Skip("dialDaemon uses the UNIX socket on darwin, not otherTCPAddr")
	}
	ln, err := net.Listen("tcp", otherTCPAddr)
	if err != nil {
		t.Skipf("cannot bind fake daemon at %s: %v", otherTCPAddr, err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeConn(conn)
		}
	}()
	return ln
}

func serveFakeConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	pkt, err := readPacket(context.Background(), r)
	if err != nil {
		return
	}
	switch pkt.messageType() {
	case "Listen":
		reply := newPacket(pkt.tag, map[string]any{"MessageType": "Result", "Number": int64(0)})
		buf, err := reply.marshal()
		if err != nil {
			return
		}
		if _, err := conn.Write(buf); err != nil {
			return
		}
		attach := newPacket(0, map[string]any{
			"MessageType": "Attached",
			"DeviceID":    uint32(42),
			"Properties": map[string]any{
				"SerialNumber":    "ABC123",
				"ProductID":       uint64(4776),
				"LocationID":      uint64(0),
				"ConnectionSpeed": uint64(480000000),
				"ConnectionType":  "USB",
			},
		})
		buf2, err := attach.marshal()
		if err != nil {
			return
		}
		conn.Write(buf2)
		io.Copy(io.Discard, conn)
	case "Connect":
		reply := newPacket(pkt.tag, map[string]any{"MessageType": "Result", "Number": int64(0)})
		buf, err := reply.marshal()
		if err != nil {
			return
		}
		conn.Write(buf)
		conn.Write([]byte("device-stream-bytes"))
		io.Copy(io.Discard, conn)
	default:
		reply := newPacket(pkt.tag, map[string]any{"MessageType": "Result", "Number": int64(1)})
		buf, _ := reply.marshal()
		conn.Write(buf)
	}
}

func TestHubMonitorPublishesAttachNotification(t *testing.T) {
	ln := startFakeDaemon(t)
	defer ln.Close()

	h := newHub()
	notifyCh, cancel := h.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	h.StartMonitoring(ctx)

	select {
	case n := <-notifyCh:
		assert.Equal(t, DeviceAttached, n.Kind)
		assert.Equal(t, uint32(42), n.DeviceID)
		assert.Equal(t, "ABC123", n.Properties.SerialNumber)
		assert.Equal(t, uint32(480000000), n.Properties.ConnectionSpeed)
	case <-time.After(2 * time.Second):
		t.Fatal("never received the Attached notification")
	}

	require.Eventually(t, func() bool {
		return len(h.Devices()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHubConnectToDevicePortHandsOffStream(t *testing.T) {
	ln := startFakeDaemon(t)
	defer ln.Close()

	h := newHub()
	conn, err := h.ConnectToDevicePort(context.Background(), 42, 22)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, len("device-stream-bytes"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "device-stream-bytes", string(buf))
}
