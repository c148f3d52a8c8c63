package usbmux

import "errors"

// Sentinel errors, per spec.md §7 and the fuller four-code table carried
// over from original_source's PTUSBHubError (spec.md §8 "supplemented
// features").
var (
	// ErrInvalidCommand is returned when the daemon rejected a request we
	// sent as malformed or out of sequence (Result Number=1).
	ErrInvalidCommand = errors.New("usbmux: invalid command")

	// ErrBadDevice is returned when Connect named a device the daemon
	// doesn't know about (Result Number=2).
	ErrBadDevice = errors.New("usbmux: bad device")

	// ErrConnectionRefused is returned when Connect reached the device but
	// nothing was listening on the requested port (Result Number=3).
	ErrConnectionRefused = errors.New("usbmux: connection refused")

	// ErrInvalidResponse is returned when a reply is unparsable, uses an
	// unexpected packet_type, or lacks the fields this client expects.
	// Per spec.md §7, this resets the hub's control socket.
	ErrInvalidResponse = errors.New("usbmux: invalid response")
)

// resultError maps a Connect/Listen Result's Number field to the
// corresponding sentinel, per spec.md §4.4's error-mapping table.
func resultError(code int64) error {
	switch code {
	case 0:
		return nil
	case 1:
		return ErrInvalidCommand
	case 2:
		return ErrBadDevice
	case 3:
		return ErrConnectionRefused
	default:
		return ErrInvalidResponse
	}
}
