package audio

import (
	"math"
	"sync"
	"testing"
)

func TestCaptureBufferDropsWritesWhenIdle(t *testing.T) {
	c, err := NewCaptureBuffer(64)
	if err != nil {
		t.Fatalf("NewCaptureBuffer() error = %v", err)
	}

	c.Write(ramp(0, 10))
	if got := c.End(); got != -1 {
		t.Errorf("End() without Begin = %d, want -1", got)
	}
	if clip := c.TakeClip(); clip != nil {
		t.Errorf("TakeClip() = %v, want nil", clip)
	}
}

func TestCaptureBufferBeginTwice(t *testing.T) {
	c, _ := NewCaptureBuffer(64)
	if !c.Begin() {
		t.Fatal("first Begin() = false")
	}
	if c.Begin() {
		t.Error("second Begin() while recording = true, want false")
	}
}

func TestCaptureBufferTakeClipIsDestructive(t *testing.T) {
	c, _ := NewCaptureBuffer(64)
	c.Begin()
	c.Write([]float32{0.9, -0.9, 0.5})
	if n := c.End(); n != 3 {
		t.Fatalf("End() = %d, want 3", n)
	}

	first := c.TakeClip()
	if len(first) != 3 {
		t.Fatalf("TakeClip() len = %d, want 3", len(first))
	}
	if second := c.TakeClip(); second != nil {
		t.Errorf("second TakeClip() = %v, want nil", second)
	}
}

func TestCaptureBufferClipAppliesAutoGain(t *testing.T) {
	c, _ := NewCaptureBuffer(64)
	c.Begin()
	c.Write([]float32{0.1, -0.2, 0.05})
	c.End()

	clip := c.TakeClip()
	// peak 0.2 is below the threshold and is scaled to the target.
	if math.Abs(float64(clip[1])+AutoGainTarget) > 1e-6 {
		t.Errorf("clip[1] = %v, want %v", clip[1], -AutoGainTarget)
	}
}

func TestCaptureBufferBeginClearsUntakenClip(t *testing.T) {
	c, _ := NewCaptureBuffer(64)
	c.Begin()
	c.Write(ramp(1, 4))
	c.End()

	c.Begin()
	c.End()
	if clip := c.TakeClip(); clip != nil {
		t.Errorf("TakeClip() after empty recording = %v, want nil", clip)
	}
}

func TestCaptureBufferClipSurvivesNextRecording(t *testing.T) {
	c, _ := NewCaptureBuffer(8)
	c.Begin()
	c.Write([]float32{0.6, 0.7, 0.8})
	c.End()

	// Hold on to the previous clip while the next session writes.
	c.clipMu.Lock()
	held := c.clip
	c.clipMu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.ring.Write([]float32{-1, -1, -1, -1, -1, -1, -1, -1, -1})
	}()
	wg.Wait()

	if held[0] != 0.6 || held[2] != 0.8 {
		t.Errorf("held clip mutated by new writes: %v", held)
	}
}
