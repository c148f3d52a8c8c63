package peertalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := header{version: ProtocolVersion, typ: 7, tag: 12345, payloadSize: 9001}
	var buf [headerSize]byte
	h.encode(buf[:])
	got := decodeHeader(buf[:])
	assert.Equal(t, h, got)
}

func TestHeaderEncodeIsBigEndian(t *testing.T) {
	h := header{version: 1, typ: 0, tag: 0, payloadSize: 0}
	var buf [headerSize]byte
	h.encode(buf[:])
	assert.Equal(t, []byte{0, 0, 0, 1}, buf[0:4])
}

func TestEndOfStreamHeader(t *testing.T) {
	h := endOfStreamHeader()
	assert.Equal(t, EndOfStream, h.typ)
	assert.Equal(t, NoTag, h.tag)
	assert.Equal(t, uint32(0), h.payloadSize)
	assert.Equal(t, ProtocolVersion, h.version)
}
