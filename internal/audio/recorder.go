package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrAlreadyRecording is returned by StartRecording while a capture is active.
var ErrAlreadyRecording = errors.New("audio: already recording")

// scratchFrames bounds the per-callback conversion buffer. Larger callbacks
// are processed in several passes so onData never allocates.
const scratchFrames = 8192

// RecorderConfig describes the capture stream.
type RecorderConfig struct {
	SampleRate          uint32
	Channels            uint32
	FramesPerBuffer     uint32
	MaxRecordingSeconds int
}

// Recorder captures audio from the default microphone into a CaptureBuffer.
// Multi-channel input is down-mixed to mono inside the capture callback.
type Recorder struct {
	*CaptureBuffer

	ctx *malgo.AllocatedContext
	cfg RecorderConfig

	mu     sync.Mutex // guards device
	device *malgo.Device

	scratch []float32 // only touched from the capture callback
}

// NewRecorder creates a recorder with a ring sized for MaxRecordingSeconds.
// Call Close() when done.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.SampleRate == 0 || cfg.Channels == 0 {
		return nil, fmt.Errorf("audio: sample rate and channels must be > 0")
	}
	capacity := int(cfg.SampleRate) * cfg.MaxRecordingSeconds
	buf, err := NewCaptureBuffer(capacity)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	return &Recorder{
		CaptureBuffer: buf,
		ctx:           ctx,
		cfg:           cfg,
		scratch:       make([]float32, scratchFrames),
	}, nil
}

// StartRecording resets the ring and starts the capture device. On failure
// the recorder rolls back to not-recording.
func (r *Recorder) StartRecording() error {
	if !r.Begin() {
		return ErrAlreadyRecording
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.cfg.Channels
	deviceCfg.SampleRate = r.cfg.SampleRate
	if r.cfg.FramesPerBuffer > 0 {
		deviceCfg.PeriodSizeInFrames = r.cfg.FramesPerBuffer
	}

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.End()
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.End()
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// StopRecording stops the device and moves the captured audio into the
// holding slot. It returns the number of captured samples, or -1 if no
// recording was active. Fetch the audio with TakeClip.
func (r *Recorder) StopRecording() int {
	if !r.Recording() {
		return -1
	}
	r.mu.Lock()
	if r.device != nil {
		// Uninit waits for the callback to return, so the ring is quiescent
		// before End snapshots it.
		r.device.Uninit()
		r.device = nil
	}
	r.mu.Unlock()

	return r.End()
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	return r.Recording()
}

// SampleRate returns the configured capture rate.
func (r *Recorder) SampleRate() uint32 {
	return r.cfg.SampleRate
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.mu.Unlock()
	r.End()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds little-endian float32 frames. It must not block or allocate.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	channels := int(r.cfg.Channels)
	frames := int(frameCount)
	if maxFrames := len(pSample) / (4 * channels); frames > maxFrames {
		frames = maxFrames
	}

	for done := 0; done < frames; {
		n := min(frames-done, len(r.scratch))
		offset := done * channels * 4
		downmixFloat32(r.scratch[:n], pSample[offset:], channels)
		r.Write(r.scratch[:n])
		done += n
	}
}

// downmixFloat32 decodes len(dst) interleaved little-endian float32 frames
// from data into dst, averaging the channels of each frame.
func downmixFloat32(dst []float32, data []byte, channels int) {
	for i := range dst {
		var sum float32
		base := i * channels * 4
		for ch := 0; ch < channels; ch++ {
			off := base + ch*4
			sum += math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		}
		if channels > 1 {
			sum /= float32(channels)
		}
		dst[i] = sum
	}
}
