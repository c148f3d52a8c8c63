package peertalk

import "encoding/binary"

const (
	// headerSize is the fixed size, in bytes, of a frame header: four
	// big-endian uint32 fields, per spec.
	headerSize = 16

	// ProtocolVersion is the only header version this engine understands.
	// The source has two divergent historical header layouts; this is the
	// canonical one used by shipping clients (spec.md §9).
	ProtocolVersion uint32 = 1

	// EndOfStream is the sentinel frame type used by Cancel to signal a
	// graceful shutdown. Applications must not use this as a real frame
	// type.
	EndOfStream uint32 = 0xFFFFFFFF

	// NoTag is the reserved tag value meaning "no correlation".
	NoTag uint32 = 0

	// DefaultPayloadCeiling bounds payload_size before any allocation is
	// attempted, per spec §3 ("bounded by a per-channel ceiling").
	DefaultPayloadCeiling uint32 = 16 << 20 // 16 MiB
)

// header is the on-wire, fixed 16-byte frame header. Fields are always
// encoded/decoded in network byte order (big-endian).
type header struct {
	version     uint32
	typ         uint32
	tag         uint32
	payloadSize uint32
}

// encode writes h into a 16-byte buffer. buf must be at least headerSize
// long; encode never allocates.
func (h header) encode(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], h.version)
	binary.BigEndian.PutUint32(buf[4:8], h.typ)
	binary.BigEndian.PutUint32(buf[8:12], h.tag)
	binary.BigEndian.PutUint32(buf[12:16], h.payloadSize)
}

// decodeHeader parses a 16-byte buffer into a header. The caller is
// responsible for having read exactly headerSize bytes first; decodeHeader
// itself never observes a partial header.
func decodeHeader(buf []byte) header {
	return header{
		version:     binary.BigEndian.Uint32(buf[0:4]),
		typ:         binary.BigEndian.Uint32(buf[4:8]),
		tag:         binary.BigEndian.Uint32(buf[8:12]),
		payloadSize: binary.BigEndian.Uint32(buf[12:16]),
	}
}

// Frame is the decoded, consumer-facing representation of one received
// message: a type, a correlation tag, and an optional zero-copy payload.
type Frame struct {
	Type    uint32
	Tag     uint32
	Payload *Payload
}

// endOfStreamHeader is the exact header enqueued by Cancel.
func endOfStreamHeader() header {
	return header{version: ProtocolVersion, typ: EndOfStream, tag: NoTag, payloadSize: 0}
}
