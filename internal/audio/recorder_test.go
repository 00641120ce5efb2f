package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func testRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate:          16000,
		Channels:            1,
		FramesPerBuffer:     2048,
		MaxRecordingSeconds: 30,
	}
}

func TestNewRecorderAndClose(t *testing.T) {
	r, err := NewRecorder(testRecorderConfig())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if r.SampleRate() != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", r.SampleRate())
	}
	if r.Capacity() != 16000*30 {
		t.Errorf("Capacity() = %d, want %d", r.Capacity(), 16000*30)
	}
}

func TestNewRecorderRejectsZeroRate(t *testing.T) {
	cfg := testRecorderConfig()
	cfg.SampleRate = 0
	if _, err := NewRecorder(cfg); err == nil {
		t.Error("NewRecorder() with zero sample rate should fail")
	}
}

func TestNewRecorderRejectsZeroDuration(t *testing.T) {
	cfg := testRecorderConfig()
	cfg.MaxRecordingSeconds = 0
	if _, err := NewRecorder(cfg); err == nil {
		t.Error("NewRecorder() with zero max duration should fail")
	}
}

func TestRecorderNotRecordingByDefault(t *testing.T) {
	r, err := NewRecorder(testRecorderConfig())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer r.Close()

	if r.IsRecording() {
		t.Error("IsRecording() should be false after creation")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r, err := NewRecorder(testRecorderConfig())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer r.Close()

	if n := r.StopRecording(); n != -1 {
		t.Errorf("StopRecording() without StartRecording() = %d, want -1", n)
	}
	if clip := r.TakeClip(); clip != nil {
		t.Errorf("TakeClip() = %d samples, want nil", len(clip))
	}
}

func putFloats(vals ...float32) []byte {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

func TestDownmixFloat32Mono(t *testing.T) {
	// 1.0 = 0x3F800000, -1.0 = 0xBF800000
	data := []byte{
		0x00, 0x00, 0x80, 0x3F,
		0x00, 0x00, 0x80, 0xBF,
	}
	dst := make([]float32, 2)
	downmixFloat32(dst, data, 1)

	if dst[0] != 1.0 || dst[1] != -1.0 {
		t.Errorf("downmixFloat32() = %v, want [1 -1]", dst)
	}
}

func TestDownmixFloat32Stereo(t *testing.T) {
	data := putFloats(0.5, 0.25, -1, 0)
	dst := make([]float32, 2)
	downmixFloat32(dst, data, 2)

	if dst[0] != 0.375 || dst[1] != -0.5 {
		t.Errorf("downmixFloat32() = %v, want [0.375 -0.5]", dst)
	}
}

func TestOnDataWritesWhileRecording(t *testing.T) {
	buf, _ := NewCaptureBuffer(16)
	r := &Recorder{
		CaptureBuffer: buf,
		cfg:           RecorderConfig{SampleRate: 16000, Channels: 2},
		scratch:       make([]float32, 3), // force several passes
	}

	frames := putFloats(0.1, 0.3, 0.2, 0.4, 0.3, 0.5, 0.4, 0.6, 0.5, 0.7)
	r.onData(nil, frames, 5)
	if buf.ring.Total() != 0 {
		t.Fatalf("onData wrote %d samples while idle", buf.ring.Total())
	}

	buf.Begin()
	r.onData(nil, frames, 5)
	buf.End()

	clip := buf.ring.Snapshot()
	want := []float32{0.2, 0.3, 0.4, 0.5, 0.6}
	if len(clip) != len(want) {
		t.Fatalf("captured %d samples, want %d", len(clip), len(want))
	}
	for i := range want {
		if math.Abs(float64(clip[i]-want[i])) > 1e-6 {
			t.Errorf("sample[%d] = %v, want %v", i, clip[i], want[i])
		}
	}
}

func TestOnDataIgnoresShortBuffer(t *testing.T) {
	buf, _ := NewCaptureBuffer(16)
	r := &Recorder{
		CaptureBuffer: buf,
		cfg:           RecorderConfig{SampleRate: 16000, Channels: 1},
		scratch:       make([]float32, 8),
	}
	buf.Begin()
	// frameCount claims 4 frames but only 2 are present.
	r.onData(nil, putFloats(0.1, 0.2), 4)
	if got := buf.ring.Total(); got != 2 {
		t.Errorf("Total() = %d, want 2", got)
	}
}
