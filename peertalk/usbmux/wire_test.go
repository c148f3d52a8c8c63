package usbmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWireHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := wireHeader{totalSize: 42, reserved: 0, packetType: packetTypePlist, tag: 7}
	var buf [wireHeaderSize]byte
	h.encode(buf[:])
	assert.Equal(t, h, decodeWireHeader(buf[:]))
}

func TestWireHeaderIsLittleEndian(t *testing.T) {
	h := wireHeader{totalSize: 0x01020304}
	var buf [wireHeaderSize]byte
	h.encode(buf[:])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[0:4])
}

func TestSwapPortByteOrder(t *testing.T) {
	// port 22 as network byte order inside little-endian framing comes out
	// as 0x1600, matching the documented usbmuxd quirk.
	assert.Equal(t, uint16(0x1600), swapPortByteOrder(22))
	assert.Equal(t, uint16(22), swapPortByteOrder(int(swapPortByteOrder(22))))
}
