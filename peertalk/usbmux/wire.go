// Package usbmux is a client of the host's on-machine USB-multiplexing
// daemon (spec.md §4.4): it enumerates attached devices and opens
// TCP-like per-device streams over a local administrative socket using a
// small JSON-in-binary (in practice, plist-in-binary) control protocol.
package usbmux

import "encoding/binary"

const (
	// wireHeaderSize is the fixed size of the control-packet header: four
	// little-endian uint32 fields (spec.md §4.4). This is the frame
	// protocol's own header shape, but little-endian - the wire-format
	// open question in spec.md §9 says this asymmetry is intentional and
	// must be preserved.
	wireHeaderSize = 16

	// packetTypePlist is the only packet_type this client sends or
	// accepts; any other value is a legacy format and is refused.
	packetTypePlist uint32 = 4
)

// wireHeader is the control-packet header: total_size (including the
// header itself), a reserved field (always 0), packet_type, and the
// request/reply correlation tag.
type wireHeader struct {
	totalSize  uint32
	reserved   uint32
	packetType uint32
	tag        uint32
}

func (h wireHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.totalSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.reserved)
	binary.LittleEndian.PutUint32(buf[8:12], h.packetType)
	binary.LittleEndian.PutUint32(buf[12:16], h.tag)
}

func decodeWireHeader(buf []byte) wireHeader {
	return wireHeader{
		totalSize:  binary.LittleEndian.Uint32(buf[0:4]),
		reserved:   binary.LittleEndian.Uint32(buf[4:8]),
		packetType: binary.LittleEndian.Uint32(buf[8:12]),
		tag:        binary.LittleEndian.Uint32(buf[12:16]),
	}
}
