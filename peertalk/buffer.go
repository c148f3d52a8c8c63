package peertalk

import "sync"

// Payload is an immutable, shared byte buffer handed to consumers on
// delivery and to the write path on send. It stands in for the source's
// mapped, ref-counted NSData: the bytes are safe to read past the callback
// that delivered them, and Release returns the backing array to the pool
// once the holder is done with it.
//
// A Payload delivered via Consumer.OnFrame must
// be released exactly once by its final owner. Payloads that are never
// pooled (e.g. built directly from a caller-owned slice via WrapPayload)
// make Release a no-op.
type Payload struct {
	b       []byte
	pool    *bufferPool // nil if not pool-backed
	release sync.Once
}

// Bytes returns the payload's contents. The returned slice must not be
// retained past Release.
func (p *Payload) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.b
}

// Len returns the number of payload bytes.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.b)
}

// Release returns the underlying buffer to its pool, if any. Safe to call
// more than once; only the first call has an effect.
func (p *Payload) Release() {
	if p == nil || p.pool == nil {
		return
	}
	p.release.Do(func() {
		p.pool.put(p.b)
	})
}

// WrapPayload wraps a caller-owned slice without pooling it. Used for
// outbound sends where the caller already owns a buffer they will not
// reuse concurrently.
func WrapPayload(b []byte) *Payload {
	return &Payload{b: b}
}

// bufferPool buckets buffers by power-of-two size, mirroring smux's
// defaultAllocator: Get(size) returns a buffer of at least size bytes, Put
// recycles it for reuse. This avoids a fresh allocation for every inbound
// frame's payload.
const numBufferBuckets = 19 // 2^6 (64B) through 2^24 (16MiB)

type bufferPool struct {
	pools [numBufferBuckets]sync.Pool
}

var sharedBufferPool = newBufferPool()

func newBufferPool() *bufferPool {
	bp := &bufferPool{}
	for i := range bp.pools {
		size := bufferBucketSize(i)
		bp.pools[i].New = func() any {
			return make([]byte, size)
		}
	}
	return bp
}

func bufferBucketSize(i int) int {
	return 1 << (6 + i)
}

func bufferBucketIndex(n int) int {
	for i := range numBufferBuckets {
		if bufferBucketSize(i) >= n {
			return i
		}
	}
	return -1
}

// get returns a *Payload with at least n bytes of capacity, length exactly
// n. Buffers too large for the largest bucket are allocated directly and
// not pooled.
func (bp *bufferPool) get(n int) *Payload {
	idx := bufferBucketIndex(n)
	if idx < 0 {
		return &Payload{b: make([]byte, n)}
	}
	buf := bp.pools[idx].Get().([]byte)
	return &Payload{b: buf[:n], pool: bp}
}

func (bp *bufferPool) put(b []byte) {
	idx := bufferBucketIndex(cap(b))
	// only buffers that came from an exact bucket size are recycled;
	// anything else (e.g. a shrunk slice) is left for the GC.
	if idx < 0 || bufferBucketSize(idx) != cap(b) {
		return
	}
	bp.pools[idx].Put(b[:cap(b)])
}
