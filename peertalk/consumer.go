package peertalk

// Consumer is the event surface a channel is parameterised by. It collapses
// the source's delegate-protocol-or-individual-callbacks duality (spec.md
// §9) into one set of optional hooks; a zero-value Consumer accepts every
// frame and does nothing with it.
//
// All hooks for one channel are invoked serially on that channel's own
// goroutine (spec.md §5): a handler may call back into the channel (e.g.
// SendFrame) without deadlocking, but must not block indefinitely.
type Consumer struct {
	// ShouldAccept decides whether the payload for a header-described frame
	// should be read and delivered via OnFrame, or discarded. A nil
	// ShouldAccept accepts everything, per spec.md §4.3 default.
	ShouldAccept func(typ, tag, payloadSize uint32) bool

	// OnFrame delivers one received frame. The payload, if any, is owned by
	// the callee until Release'd; it remains valid after OnFrame returns
	// until then.
	OnFrame func(f Frame)

	// OnEnd is delivered exactly once, as the final event for the channel.
	// err is nil for a clean/graceful end.
	OnEnd func(err error)

	// OnAccept is delivered on a listening channel for each accepted
	// connection; the listening channel retains no ownership of child.
	OnAccept func(child *Channel, addr Address)
}

func (c Consumer) shouldAccept(typ, tag, payloadSize uint32) bool {
	if c.ShouldAccept == nil {
		return true
	}
	return c.ShouldAccept(typ, tag, payloadSize)
}

func (c Consumer) deliverFrame(f Frame) {
	if c.OnFrame != nil {
		c.OnFrame(f)
	} else if f.Payload != nil {
		f.Payload.Release()
	}
}

func (c Consumer) deliverEnd(err error) {
	if c.OnEnd != nil {
		c.OnEnd(err)
	}
}

func (c Consumer) deliverAccept(child *Channel, addr Address) {
	if c.OnAccept != nil {
		c.OnAccept(child, addr)
	}
}
