package audio

import (
	"sync"
	"sync/atomic"
)

// CaptureBuffer gates a RingBuffer with a recording flag and keeps the clip
// from the last finished recording in a separate holding slot.
//
// Write is the real-time path and only touches atomics. Begin, End and
// TakeClip run on control goroutines and share clipMu; the writer never
// takes it, so a slow consumer of the previous clip cannot stall capture of
// the next one.
type CaptureBuffer struct {
	ring      *RingBuffer
	recording atomic.Bool

	clipMu sync.Mutex
	clip   []float32
}

// NewCaptureBuffer creates a capture buffer holding at most capacity samples.
func NewCaptureBuffer(capacity int) (*CaptureBuffer, error) {
	ring, err := NewRingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &CaptureBuffer{ring: ring}, nil
}

// Begin resets the ring, drops any clip that was never taken, and starts
// accepting writes. It reports false if a recording is already in progress.
func (c *CaptureBuffer) Begin() bool {
	if c.recording.Load() {
		return false
	}
	c.ring.Reset()
	c.clipMu.Lock()
	c.clip = nil
	c.clipMu.Unlock()
	c.recording.Store(true)
	return true
}

// Write appends samples while a recording is active and drops them otherwise.
func (c *CaptureBuffer) Write(samples []float32) {
	if !c.recording.Load() {
		return
	}
	c.ring.Write(samples)
}

// End stops accepting writes and moves a snapshot of the ring into the
// holding slot. It returns the number of samples in the clip, or -1 if no
// recording was active.
func (c *CaptureBuffer) End() int {
	if !c.recording.Swap(false) {
		return -1
	}
	snap := c.ring.Snapshot()

	c.clipMu.Lock()
	c.clip = snap
	c.clipMu.Unlock()
	return len(snap)
}

// Recording reports whether writes are currently accepted.
func (c *CaptureBuffer) Recording() bool {
	return c.recording.Load()
}

// TakeClip hands the last clip to the caller after auto-gain and clamping.
// The slot is emptied, so a second call before the next recording returns nil.
func (c *CaptureBuffer) TakeClip() []float32 {
	c.clipMu.Lock()
	clip := c.clip
	c.clip = nil
	c.clipMu.Unlock()

	if len(clip) == 0 {
		return nil
	}
	return ApplyAutoGain(clip, AutoGainThreshold, AutoGainTarget)
}

// Capacity returns the ring capacity in samples.
func (c *CaptureBuffer) Capacity() int {
	return c.ring.Cap()
}
