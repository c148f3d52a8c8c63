package peertalk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueueAcquireRelease(t *testing.T) {
	q := newWriteQueue(2, 100)
	done := make(chan struct{})

	require.NoError(t, q.acquire(40, done))
	require.NoError(t, q.acquire(40, done))

	blocked := make(chan error, 1)
	go func() { blocked <- q.acquire(10, done) }()

	select {
	case <-blocked:
		t.Fatal("acquire should have blocked: frame count at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	q.release(40)
	select {
	case err := <-blocked:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acquire never unblocked after release")
	}
}

func TestWriteQueueAdmitsOversizedFrameWhenEmpty(t *testing.T) {
	q := newWriteQueue(4, 100)
	done := make(chan struct{})
	// a single frame bigger than maxBytes must still be admitted once the
	// queue is otherwise empty, or it could never be sent at all.
	require.NoError(t, q.acquire(1000, done))
	q.release(1000)
}

func TestWriteQueueAcquireCancelledByDone(t *testing.T) {
	q := newWriteQueue(1, 100)
	done := make(chan struct{})
	require.NoError(t, q.acquire(10, done))

	result := make(chan error, 1)
	go func() { result <- q.acquire(10, done) }()

	close(done)
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("acquire never observed done closing")
	}
}
