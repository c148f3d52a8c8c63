// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package peertalk

import "errors"

// Sentinel errors surfaced to consumers. ErrCancelled only ever reaches a
// send: its callback, or SendFrame's return when the channel closes while
// SendFrame waits for queue room. ErrPayloadTooLarge returned by SendFrame
// rejects only that send; from a peer's header it ends the channel.
var (
	// ErrInvalidFrame covers a bad version, an oversized payload_size, or a
	// short read while parsing a header/payload.
	ErrInvalidFrame = errors.New("peertalk: invalid frame")

	// ErrClosed is returned by operations attempted on a channel that has
	// already reached CLOSED.
	ErrClosed = errors.New("peertalk: channel closed")

	// ErrCancelled is delivered to a send's callback when Close aborted it
	// before it reached the wire.
	ErrCancelled = errors.New("peertalk: send cancelled")

	// ErrGoingAway is returned by SendFrame once Cancel has been
	// called: the write queue is draining and accepts no new frames.
	ErrGoingAway = errors.New("peertalk: channel is closing")

	// ErrNotListening names the state of a channel that never called
	// Listen. No operation in this package returns it; ListenAddr reports
	// that case as a nil address.
	ErrNotListening = errors.New("peertalk: channel is not listening")

	// ErrPayloadTooLarge is a specialization of ErrInvalidFrame identifying
	// the oversized-payload_size edge case from spec scenario 5.
	ErrPayloadTooLarge = errors.New("peertalk: payload_size exceeds ceiling")
)

// FrameError reports a framing violation read from the peer (bad version,
// oversized payload_size, short read), matching spec's "fatal for channel"
// disposition. Err holds the specific cause; every FrameError also matches
// errors.Is(err, ErrInvalidFrame).
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return "peertalk: frame error: " + e.Err.Error() }
func (e *FrameError) Unwrap() error { return e.Err }

// Is reports every FrameError as ErrInvalidFrame under errors.Is.
func (e *FrameError) Is(target error) bool { return target == ErrInvalidFrame }
