package audio

import (
	"errors"
	"sync/atomic"
)

// ErrZeroCapacity is returned when a ring buffer is created without storage.
var ErrZeroCapacity = errors.New("audio: ring buffer capacity must be > 0")

// RingBuffer is a fixed-capacity circular store of mono float32 samples.
//
// It has a single real-time writer (the capture callback) and a single
// non-real-time reader that snapshots it after capture stops. Cursors are
// atomics; Write never locks, allocates, or blocks. When more than capacity
// samples have been written the oldest ones are overwritten.
type RingBuffer struct {
	buf   []float32
	cap   uint64
	head  atomic.Uint64 // next write position, always < cap
	total atomic.Uint64 // samples written since the last Reset
}

// NewRingBuffer allocates a zero-filled ring of capacity samples.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}
	return &RingBuffer{
		buf: make([]float32, capacity),
		cap: uint64(capacity),
	}, nil
}

// Cap returns the capacity in samples.
func (rb *RingBuffer) Cap() int {
	return int(rb.cap)
}

// Total returns the number of samples written since the last Reset,
// including ones that have since been overwritten.
func (rb *RingBuffer) Total() uint64 {
	return rb.total.Load()
}

// Reset rewinds both cursors. Storage is not cleared.
func (rb *RingBuffer) Reset() {
	rb.head.Store(0)
	rb.total.Store(0)
}

// Write copies samples into the ring at the write cursor, splitting the copy
// at the wrap boundary. Safe for exactly one concurrent writer.
func (rb *RingBuffer) Write(samples []float32) {
	n := uint64(len(samples))
	if n == 0 {
		return
	}

	head := rb.head.Load()
	if n > rb.cap {
		// Only the trailing cap samples survive; skip ahead to where they land.
		skip := n - rb.cap
		head = (head + skip) % rb.cap
		samples = samples[skip:]
	}
	m := uint64(len(samples))

	first := min(m, rb.cap-head)
	copy(rb.buf[head:head+first], samples[:first])
	if first < m {
		copy(rb.buf[:m-first], samples[first:])
	}

	rb.head.Store((head + m) % rb.cap)
	rb.total.Add(n)
}

// Snapshot returns a chronological copy of the most recent
// min(Total, Cap) samples, or nil when nothing has been written.
// It must not run concurrently with itself.
func (rb *RingBuffer) Snapshot() []float32 {
	count := min(rb.cap, rb.total.Load())
	if count == 0 {
		return nil
	}
	head := rb.head.Load()
	start := (head + rb.cap - count%rb.cap) % rb.cap

	out := make([]float32, count)
	if start+count <= rb.cap {
		copy(out, rb.buf[start:start+count])
		return out
	}
	first := rb.cap - start
	copy(out[:first], rb.buf[start:])
	copy(out[first:], rb.buf[:count-first])
	return out
}
