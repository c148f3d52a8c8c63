package usbmux

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"howett.net/plist"
)

// packet is one control-protocol message: header plus a plist body keyed
// by string, matching the MessageType-discriminated bodies of spec.md
// §4.4's request/reply table.
type packet struct {
	tag  uint32
	body map[string]any
}

func newPacket(tag uint32, body map[string]any) packet {
	return packet{tag: tag, body: body}
}

func (p packet) messageType() string {
	mt, _ := p.body["MessageType"].(string)
	return mt
}

// marshal renders p as [wireHeader || XML plist body], the exact framing
// spec.md §4.4 describes.
func (p packet) marshal() ([]byte, error) {
	body, err := plist.Marshal(p.body, plist.XMLFormat)
	if err != nil {
		return nil, errors.Wrap(err, "usbmux: encode plist body")
	}
	buf := make([]byte, wireHeaderSize+len(body))
	h := wireHeader{
		totalSize:  uint32(wireHeaderSize + len(body)),
		reserved:   0,
		packetType: packetTypePlist,
		tag:        p.tag,
	}
	h.encode(buf[:wireHeaderSize])
	copy(buf[wireHeaderSize:], body)
	return buf, nil
}

// readPacket reads one full control packet (header + body) from r. It
// never reads more than declared by total_size, so the connection's
// byte stream is left exactly positioned after the packet - important
// because after a successful Connect reply the remaining stream is handed
// off as the device's data channel (spec.md §4.4 "Operational protocol").
func readPacket(ctx context.Context, r *bufio.Reader) (packet, error) {
	var hdrBuf [wireHeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return packet{}, errors.Wrap(err, "usbmux: read header")
	}
	h := decodeWireHeader(hdrBuf[:])
	if h.packetType != packetTypePlist {
		return packet{}, ErrInvalidResponse
	}
	if h.totalSize < wireHeaderSize {
		return packet{}, ErrInvalidResponse
	}
	bodyLen := h.totalSize - wireHeaderSize
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return packet{}, errors.Wrap(err, "usbmux: read body")
	}
	var parsed map[string]any
	if _, err := plist.Unmarshal(body, &parsed); err != nil {
		return packet{}, errors.Wrap(ErrInvalidResponse, err.Error())
	}
	return packet{tag: h.tag, body: parsed}, nil
}

// swapPortByteOrder implements the documented quirk (spec.md §4.4):
// PortNumber must be supplied in network byte order inside the
// little-endian control framing, so the plain integer value placed in the
// plist is the byte-swapped port.
func swapPortByteOrder(port int) uint16 {
	p := uint16(port)
	return p<<8 | p>>8
}

func listenRequest(tag uint32, clientVersion, progName string) packet {
	return newPacket(tag, map[string]any{
		"MessageType":         "Listen",
		"ClientVersionString": clientVersion,
		"ProgName":            progName,
	})
}

func connectRequest(tag uint32, deviceID uint32, port int) packet {
	return newPacket(tag, map[string]any{
		"MessageType": "Connect",
		"DeviceID":    deviceID,
		"PortNumber":  swapPortByteOrder(port),
	})
}

// resultCode extracts the Number field from a Result reply.
func (p packet) resultCode() (int64, bool) {
	switch n := p.body["Number"].(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func (p packet) deviceID() (uint32, bool) {
	switch v := p.body["DeviceID"].(type) {
	case uint64:
		return uint32(v), true
	case int64:
		return uint32(v), true
	case int:
		return uint32(v), true
	default:
		return 0, false
	}
}

func (p packet) String() string {
	return fmt.Sprintf("usbmux.packet{tag=%d, %v}", p.tag, p.body)
}
