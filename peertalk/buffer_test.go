package peertalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolGetPutRoundTrip(t *testing.T) {
	bp := newBufferPool()
	p := bp.get(100)
	require.Equal(t, 100, p.Len())
	p.Bytes()[0] = 0xAB

	p.Release()
	// a second Release must be a no-op, not a double-put panic.
	p.Release()

	p2 := bp.get(100)
	assert.Equal(t, 100, p2.Len())
}

func TestBufferPoolOversizedNotPooled(t *testing.T) {
	bp := newBufferPool()
	n := bufferBucketSize(numBufferBuckets-1) + 1
	p := bp.get(n)
	assert.Equal(t, n, p.Len())
	assert.Nil(t, p.pool)
	p.Release() // no-op, never panics
}

func TestBufferBucketIndexRoundsUp(t *testing.T) {
	assert.Equal(t, bufferBucketSize(0), 64)
	idx := bufferBucketIndex(65)
	assert.Greater(t, bufferBucketSize(idx), 64)
	assert.GreaterOrEqual(t, bufferBucketSize(idx), 65)
}

func TestWrapPayloadReleaseIsNoop(t *testing.T) {
	p := WrapPayload([]byte("hello"))
	assert.Equal(t, 5, p.Len())
	p.Release()
	assert.Equal(t, []byte("hello"), p.Bytes())
}

func TestNilPayloadIsSafe(t *testing.T) {
	var p *Payload
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Bytes())
	p.Release() // must not panic on a nil receiver
}
