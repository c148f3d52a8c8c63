package peertalk

import (
	"context"

	"github.com/sagernet/sing/common/bufio"
)

// streamWriter adapts Stream.Write to a plain io.Writer for the duration
// of encoding, using a fixed background context: cancellation of an
// in-flight write is handled by the channel closing the underlying stream,
// not by this adapter.
type streamWriter struct{ s Stream }

func (w streamWriter) Write(p []byte) (int, error) { return w.s.Write(context.Background(), p) }

// newFrameEncoder builds the encode half of the frame codec (spec.md
// §4.2) for one stream: it packs the 16-byte header and emits
// [header || payload]. It prefers a single scatter-gather write of header
// and payload together via sagernet/sing's vectorised writer - built once
// here and reused for every frame, exactly as the teacher's sendLoop
// builds its vectorised writer once outside the send loop - so the
// payload is never copied. When the stream doesn't support vectorised
// writes, it falls back to two plain writes rather than copying the
// payload into one combined buffer, preserving the zero-copy contract of
// spec.md §9 even for large payloads.
func newFrameEncoder(stream Stream) func(ctx context.Context, h header, payload *Payload) error {
	sw := streamWriter{stream}
	var hdrBuf [headerSize]byte

	if vw, ok := bufio.CreateVectorisedWriter(sw); ok {
		return func(ctx context.Context, h header, payload *Payload) error {
			h.encode(hdrBuf[:])
			var body []byte
			if payload != nil {
				body = payload.Bytes()
			}
			if len(body) == 0 {
				_, err := stream.Write(ctx, hdrBuf[:])
				return err
			}
			_, err := bufio.WriteVectorised(vw, [][]byte{hdrBuf[:], body})
			return err
		}
	}

	return func(ctx context.Context, h header, payload *Payload) error {
		h.encode(hdrBuf[:])
		if _, err := stream.Write(ctx, hdrBuf[:]); err != nil {
			return err
		}
		if payload != nil && payload.Len() > 0 {
			_, err := stream.Write(ctx, payload.Bytes())
			return err
		}
		return nil
	}
}
