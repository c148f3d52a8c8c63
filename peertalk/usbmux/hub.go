package usbmux

import (
	"bufio"
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// NotificationKind discriminates the two async events a Hub publishes.
type NotificationKind int

const (
	DeviceAttached NotificationKind = iota
	DeviceDetached
)

// Notification is delivered to subscribers for every Attached/Detached
// packet the daemon sends (spec.md §4.4, §8 scenario 6). Properties is
// only meaningful for DeviceAttached.
type Notification struct {
	Kind       NotificationKind
	DeviceID   uint32
	Properties DeviceProperties
}

const clientVersionString = "peertalk-go-1.0"
const progName = "peertalk"

// Hub is the shared, process-wide client of the local USB-mux daemon
// (spec.md §4.4 "State": "A shared hub instance exists process-wide").
// Consumers obtain it lazily via Shared(); monitoring starts on the first
// StartMonitoring call, not on Shared(). Only the hub's own monitor goroutine writes to its
// long-lived notification socket (spec.md §5 "Shared resources");
// ConnectToDevicePort always opens its own fresh socket, handed off
// entirely to the caller on success.
type Hub struct {
	startOnce sync.Once

	mu      sync.Mutex
	devices map[uint32]Device
	subs    map[int]chan Notification
	nextSub int

	tagCounter atomic.Uint32

	reconnectLimiter *rate.Limiter
	logger           *log.Logger
}

var (
	sharedHubOnce sync.Once
	sharedHub     *Hub
)

// Shared returns the process-wide Hub, constructing it (but not yet
// starting it) on first call.
func Shared() *Hub {
	sharedHubOnce.Do(func() {
		sharedHub = newHub()
	})
	return sharedHub
}

func newHub() *Hub {
	return &Hub{
		devices: make(map[uint32]Device),
		subs:    make(map[int]chan Notification),
		// caps reconnect attempts to one per 200ms even if the daemon
		// socket is refusing connections instantly, so a dead daemon
		// doesn't spin the monitor loop hot.
		reconnectLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:           log.New(log.Writer(), "usbmux: ", log.LstdFlags),
	}
}

// StartMonitoring begins listening for device attach/detach notifications
// in the background if it hasn't already been started (spec.md §4.4
// "Start listening for devices"). Safe to call more than once and from
// multiple goroutines.
func (h *Hub) StartMonitoring(ctx context.Context) {
	h.startOnce.Do(func() {
		go h.monitorLoop(ctx)
	})
}

func (h *Hub) nextTag() uint32 {
	return h.tagCounter.Add(1)
}

// Subscribe registers for future notifications. The returned channel is
// buffered and notifications are sent non-blocking - a slow subscriber
// drops notifications rather than stalling the hub (spec.md §4.4
// "Notification delivery is asynchronous with respect to consumer
// calls"). Call the returned cancel func to unsubscribe.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Devices returns a snapshot of currently attached devices.
func (h *Hub) Devices() []Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Device, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d)
	}
	return out
}

func (h *Hub) publish(n Notification) {
	h.mu.Lock()
	switch n.Kind {
	case DeviceAttached:
		h.devices[n.DeviceID] = Device{ID: n.DeviceID, Properties: n.Properties}
	case DeviceDetached:
		delete(h.devices, n.DeviceID)
	}
	subs := make([]chan Notification, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// monitorLoop holds the daemon connection open, re-dialing and re-issuing
// Listen with exponential backoff on transport errors (spec.md §7
// "Recovery is local only for UMC transient reconnects").
func (h *Hub) monitorLoop(ctx context.Context) {
	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_ = h.reconnectLimiter.Wait(ctx)
		return h.runMonitorSession(ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	_ = backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		h.logger.Printf("monitor session ended: %v; reconnecting in %s", err, d)
	})
}

func (h *Hub) runMonitorSession(ctx context.Context) error {
	conn, err := dialDaemon(ctx)
	if err != nil {
		return errors.Wrap(err, "usbmux: dial")
	}
	defer conn.Close()

	listenTag := h.nextTag()
	req := listenRequest(listenTag, clientVersionString, progName)
	if err := writePacket(conn, req); err != nil {
		return errors.Wrap(err, "usbmux: send Listen")
	}

	r := bufio.NewReader(conn)
	reply, err := readPacket(ctx, r)
	if err != nil {
		return err
	}
	if reply.messageType() != "Result" {
		return ErrInvalidResponse
	}
	code, ok := reply.resultCode()
	if !ok {
		return ErrInvalidResponse
	}
	if err := resultError(code); err != nil {
		return err
	}

	for {
		pkt, err := readPacket(ctx, r)
		if err != nil {
			return err
		}
		switch pkt.messageType() {
		case "Attached":
			id, _ := pkt.deviceID()
			props, _ := pkt.body["Properties"].(map[string]any)
			h.publish(Notification{Kind: DeviceAttached, DeviceID: id, Properties: parseDeviceProperties(props)})
		case "Detached":
			id, _ := pkt.deviceID()
			h.publish(Notification{Kind: DeviceDetached, DeviceID: id})
		default:
			// unknown async message; ignore rather than treat as fatal.
		}
	}
}

// ConnectToDevicePort opens a TCP-like stream to port on deviceID (spec.md
// §4.4 "Connect"). It dials a fresh control socket, issues Connect, and on
// a Number=0 reply hands back that same connection with its remaining
// byte stream as the data channel - exactly the handoff spec.md describes.
// On any other reply or transport failure the connection is closed and a
// mapped error is returned; the channel this feeds never reaches
// CONNECTED (spec.md §7).
func (h *Hub) ConnectToDevicePort(ctx context.Context, deviceID uint32, port int) (net.Conn, error) {
	conn, err := dialDaemon(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "usbmux: dial")
	}

	tag := h.nextTag()
	req := connectRequest(tag, deviceID, port)
	if err := writePacket(conn, req); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "usbmux: send Connect")
	}

	r := bufio.NewReader(conn)
	reply, err := readPacket(ctx, r)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply.messageType() != "Result" {
		conn.Close()
		return nil, ErrInvalidResponse
	}
	code, ok := reply.resultCode()
	if !ok {
		conn.Close()
		return nil, ErrInvalidResponse
	}
	if err := resultError(code); err != nil {
		conn.Close()
		return nil, err
	}

	// The bufio.Reader may have buffered bytes past the reply that
	// already belong to the data stream; hand back a conn that serves
	// those first.
	return &handoffConn{Conn: conn, r: r}, nil
}

func writePacket(w net.Conn, p packet) error {
	buf, err := p.marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// handoffConn lets a bufio.Reader's look-ahead buffer from the control
// handshake be drained before falling through to the raw connection, so no
// bytes of the handed-off device stream are lost.
type handoffConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *handoffConn) Read(p []byte) (int, error) {
	if c.r.Buffered() > 0 {
		return c.r.Read(p)
	}
	return c.Conn.Read(p)
}
