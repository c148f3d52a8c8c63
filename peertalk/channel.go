package peertalk

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// State is a Channel's position in the spec.md §4.3 lifecycle:
//
//	FRESH → (CONNECTING | LISTENING) → CONNECTED → CANCELLING → CLOSED
//
// CLOSED is also reachable directly from any state, by error or abortive
// close.
type State int32

const (
	StateFresh State = iota
	StateConnecting
	StateListening
	StateConnected
	StateCancelling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateCancelling:
		return "cancelling"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one logical, full-duplex frame connection: the frame protocol
// engine of spec.md §4.3. It owns exactly one Stream for its lifetime and
// drives it with one read goroutine and one write goroutine, mirroring the
// teacher's recvLoop/sendLoop split.
type Channel struct {
	cfg      *Config
	consumer Consumer
	tags     *tagAllocator

	mu       sync.Mutex
	state    State
	stream   Stream
	addr     Address
	userData any

	wq     *writeQueue
	sendCh chan *sendRequest
	done   chan struct{} // closed exactly once, by Close; an end caused by the peer or an I/O error sets CLOSED without closing it

	cancelling atomic.Bool
	closeOnce  sync.Once
	endOnce    sync.Once
	endErr     error

	listener net.Listener
}

// sendRequest is one entry in the write queue: an already-built header,
// an optional payload, and the callback to fire once it reaches the wire
// (or fails to).
type sendRequest struct {
	hdr      header
	payload  *Payload
	queued   int
	callback func(error)
}

// NewChannel constructs a channel in state FRESH. A nil cfg uses
// DefaultConfig(); a zero-value Consumer accepts and silently drops every
// frame.
func NewChannel(cfg *Config, consumer Consumer) *Channel {
	cfg = cfg.withDefaults()
	return &Channel{
		cfg:      cfg,
		consumer: consumer,
		tags:     newTagAllocator(),
		state:    StateFresh,
		wq:       newWriteQueue(cfg.MaxQueuedFrames, cfg.MaxQueuedBytes),
		sendCh:   make(chan *sendRequest, cfg.MaxQueuedFrames),
		done:     make(chan struct{}),
	}
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsListening reports whether the channel is an active listener.
func (c *Channel) IsListening() bool { return c.State() == StateListening }

// IsConnected reports whether the channel has an active, connected stream.
func (c *Channel) IsConnected() bool { return c.State() == StateConnected }

// Address returns the peer address, valid once CONNECTED.
func (c *Channel) Address() Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// ListenAddr returns the bound listener address, valid once Listen has
// returned successfully. Useful for binding an ephemeral port (port 0) and
// discovering what the OS actually chose.
func (c *Channel) ListenAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// UserData returns the opaque attachment set via SetUserData.
func (c *Channel) UserData() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userData
}

// SetUserData stores an arbitrary, caller-owned attachment on the channel.
func (c *Channel) SetUserData(v any) {
	c.mu.Lock()
	c.userData = v
	c.mu.Unlock()
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) transitionConnected(stream Stream, addr Address) {
	c.mu.Lock()
	c.stream = stream
	c.addr = addr
	c.state = StateConnected
	c.mu.Unlock()
}

// ConnectNetwork dials an IPv4 TCP peer and, on success, starts the read
// and write loops (spec.md §4.3 "connect over network").
func (c *Channel) ConnectNetwork(ctx context.Context, ipv4 string, port int) error {
	c.setState(StateConnecting)
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ipv4, strconv.Itoa(port)))
	if err != nil {
		c.setState(StateClosed)
		return errors.Wrap(err, "peertalk: connect")
	}
	return c.StartReading(NewNetStream(conn), NetworkAddress(ipv4, port))
}

// ConnectUSB delegates to a usbmux-shaped dialer to obtain a stream to a
// port on a USB-attached device, then behaves as ConnectNetwork (spec.md
// §4.3 "connect over USB"). dial is satisfied by *usbmux.Hub.
func (c *Channel) ConnectUSB(ctx context.Context, deviceID uint32, port int, dial USBDialer) error {
	c.setState(StateConnecting)
	conn, err := dial.ConnectToDevicePort(ctx, deviceID, port)
	if err != nil {
		c.setState(StateClosed)
		return err
	}
	return c.StartReading(NewNetStream(conn), usbAddress(deviceID, port))
}

// USBDialer is the subset of *usbmux.Hub that ConnectUSB needs, kept as an
// interface here so peertalk does not import usbmux (usbmux has no need to
// import peertalk either; they meet only through this seam and the raw
// net.Conn usbmux hands back).
type USBDialer interface {
	ConnectToDevicePort(ctx context.Context, deviceID uint32, port int) (net.Conn, error)
}

// StartReading attaches an already-connected stream and enters CONNECTED,
// starting the read and write loops (spec.md §4.3).
func (c *Channel) StartReading(stream Stream, addr Address) error {
	c.transitionConnected(stream, addr)
	go c.readLoop()
	go c.writeLoop()
	return nil
}

// Listen binds ipv4:port, sets SO_REUSEADDR, and listens with a backlog
// (spec.md §4.3 "listen"). Each accepted client becomes its own Channel in
// CONNECTED state, delivered via consumer.OnAccept; the listening channel
// never itself transitions to CONNECTED.
func (c *Channel) Listen(ctx context.Context, ipv4 string, port int) error {
	ln, err := listenReuseAddr(ctx, ipv4, port)
	if err != nil {
		c.setState(StateClosed)
		return errors.Wrap(err, "peertalk: listen")
	}
	c.mu.Lock()
	c.listener = ln
	c.state = StateListening
	c.mu.Unlock()
	go c.acceptLoop()
	return nil
}

func (c *Channel) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.finish(errors.Wrap(err, "peertalk: accept"))
			return
		}
		child := NewChannel(c.cfg, c.consumer)
		ra, _ := conn.RemoteAddr().(*net.TCPAddr)
		addr := Address{}
		if ra != nil {
			addr = NetworkAddress(ra.IP.String(), ra.Port)
		}
		child.StartReading(NewNetStream(conn), addr)
		c.consumer.deliverAccept(child, addr)
	}
}

// SendFrame enqueues an outbound frame. tag == 0 triggers allocation.
// Once SendFrame has returned nil, callback, if non-nil, fires exactly
// once: with nil once the frame (and payload, if any) has been fully
// flushed to the stream, or with a terminal error (including ErrCancelled,
// if Close aborted it first). When SendFrame returns an error the frame was
// not enqueued and callback is not called, except when the channel closes
// while the frame is being handed to the write loop: then callback gets
// ErrCancelled and SendFrame returns ErrClosed.
func (c *Channel) SendFrame(typ, tag uint32, payload *Payload, callback func(error)) error {
	if typ == EndOfStream {
		return errors.New("peertalk: application frames may not use the END_OF_STREAM sentinel type")
	}
	if tag == NoTag {
		tag = c.tags.allocate()
	}
	n := payload.Len()
	if uint32(n) > c.cfg.MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state == StateClosed {
		return ErrClosed
	}
	if c.cancelling.Load() {
		return ErrGoingAway
	}

	if err := c.wq.acquire(n, c.done); err != nil {
		return err
	}

	req := &sendRequest{
		hdr:      header{version: ProtocolVersion, typ: typ, tag: tag, payloadSize: uint32(n)},
		payload:  payload,
		queued:   n,
		callback: callback,
	}
	select {
	case c.sendCh <- req:
		return nil
	case <-c.done:
		c.wq.release(n)
		c.invokeCallback(callback, ErrCancelled)
		return ErrClosed
	}
}

func (c *Channel) invokeCallback(cb func(error), err error) {
	if cb != nil {
		cb(err)
	}
}

// Cancel requests graceful shutdown (spec.md §4.3 "cancel"): the write
// queue drains, a final END_OF_STREAM sentinel is enqueued, and the stream
// is half-closed for writing. The read loop continues until the peer also
// closes, then on_end(nil) is delivered.
func (c *Channel) Cancel() error {
	if !c.cancelling.CompareAndSwap(false, true) {
		return nil
	}
	c.setState(StateCancelling)
	eos := &sendRequest{hdr: endOfStreamHeader()}
	select {
	case c.sendCh <- eos:
	case <-c.done:
	}
	return nil
}

// Close requests abortive shutdown (spec.md §4.3 "close"): in-flight reads
// are abandoned, pending writes fail with ErrCancelled, and the consumer
// receives on_end(nil) exactly once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		stream := c.stream
		ln := c.listener
		c.state = StateClosed
		c.mu.Unlock()
		if stream != nil {
			err = stream.CloseAbortive()
		}
		if ln != nil {
			ln.Close()
		}
		c.finish(nil)
	})
	return err
}

// finish delivers on_end exactly once and marks the channel CLOSED.
func (c *Channel) finish(err error) {
	c.endOnce.Do(func() {
		c.endErr = err
		c.setState(StateClosed)
		c.drainPendingSends()
		c.consumer.deliverEnd(err)
	})
}

func (c *Channel) drainPendingSends() {
	for {
		select {
		case req := <-c.sendCh:
			c.wq.release(req.queued)
			c.invokeCallback(req.callback, ErrCancelled)
		default:
			return
		}
	}
}

// readLoop is the decode half of the frame codec (spec.md §4.2) plus the
// terminal-error plumbing of §4.3/§7. It runs until a fatal error, a clean
// peer close, or Close()/Cancel() ends the channel.
func (c *Channel) readLoop() {
	ctx := context.Background()
	var hdrBuf [headerSize]byte
	for {
		select {
		case <-c.done:
			return
		default:
		}

		b, err := c.stream.Read(ctx, headerSize, headerSize)
		if err != nil {
			if err == io.EOF && len(b) > 0 {
				err = &FrameError{Err: io.ErrUnexpectedEOF}
			}
			c.terminalError(err)
			return
		}
		copy(hdrBuf[:], b)
		h := decodeHeader(hdrBuf[:])
		if h.version != ProtocolVersion {
			c.terminalError(&FrameError{Err: errors.Errorf("unsupported version %d", h.version)})
			return
		}
		if h.typ == EndOfStream {
			// peer requested graceful close: stop reading and end the
			// channel cleanly at once. Sends the write loop has not yet
			// taken fail with ErrCancelled; this side neither sends its own
			// END_OF_STREAM nor half-closes its stream.
			c.finish(nil)
			return
		}
		if h.payloadSize > c.cfg.MaxPayloadSize {
			c.terminalError(&FrameError{Err: ErrPayloadTooLarge})
			return
		}
		if h.payloadSize == 0 {
			c.consumer.deliverFrame(Frame{Type: h.typ, Tag: h.tag})
			continue
		}
		if !c.consumer.shouldAccept(h.typ, h.tag, h.payloadSize) {
			if err := c.discard(ctx, int(h.payloadSize)); err != nil {
				if err == io.EOF {
					err = &FrameError{Err: io.ErrUnexpectedEOF}
				}
				c.terminalError(err)
				return
			}
			continue
		}
		payload, err := c.readPayload(ctx, int(h.payloadSize))
		if err != nil {
			if err == io.EOF {
				err = &FrameError{Err: io.ErrUnexpectedEOF}
			}
			c.terminalError(err)
			return
		}
		c.consumer.deliverFrame(Frame{Type: h.typ, Tag: h.tag, Payload: payload})
	}
}

func (c *Channel) readPayload(ctx context.Context, n int) (*Payload, error) {
	p := sharedBufferPool.get(n)
	got := 0
	for got < n {
		b, err := c.stream.Read(ctx, n-got, n-got)
		copy(p.b[got:], b)
		got += len(b)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *Channel) discard(ctx context.Context, n int) error {
	const chunk = 32 * 1024
	left := n
	for left > 0 {
		want := left
		if want > chunk {
			want = chunk
		}
		b, err := c.stream.Read(ctx, want, want)
		left -= len(b)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) terminalError(err error) {
	select {
	case <-c.done:
		// Close() already ran; on_end(nil) already delivered or will be.
		return
	default:
	}
	if err == io.EOF {
		c.finish(nil)
		return
	}
	c.finish(err)
}

// writeLoop is the encode half of the frame codec: it drains sendCh in
// enqueue order, guaranteeing "frames on one channel are written in
// enqueue order" (spec.md §4.3).
func (c *Channel) writeLoop() {
	ctx := context.Background()
	writeFrame := newFrameEncoder(c.stream)
	for {
		select {
		case <-c.done:
			return
		case req := <-c.sendCh:
			err := writeFrame(ctx, req.hdr, req.payload)
			if req.hdr.typ != EndOfStream {
				c.wq.release(req.queued)
			}
			c.invokeCallback(req.callback, err)
			if req.payload != nil {
				req.payload.Release()
			}
			if err != nil {
				c.terminalError(err)
				return
			}
			if req.hdr.typ == EndOfStream {
				c.stream.CloseGraceful()
				// the read loop is left running so the peer's own
				// END_OF_STREAM (or close) still drives on_end.
			}
		}
	}
}
