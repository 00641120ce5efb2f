// Package transcribe runs best-of-N speech recognition over conditioned audio.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (default)
//   - whispercpp: whisper.cpp via cgo with one whisper_state per attempt
//     (build with -tags whispercpp)
package transcribe

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoEngine is returned when a session starts without a loaded model.
	ErrNoEngine = errors.New("transcribe: no engine loaded")
	// ErrNativeUnavailable is returned when the whispercpp backend is
	// requested from a binary built without -tags whispercpp.
	ErrNativeUnavailable = errors.New("transcribe: whispercpp backend not compiled in (build with -tags whispercpp)")
)

// Engine is a loaded acoustic model. It hands out one DecodingState per
// recognition attempt so several attempts can decode against the same model.
type Engine interface {
	// NewState allocates a decoding state owned by a single attempt.
	NewState() (DecodingState, error)
	// UsesAccelerator reports whether decoding shares one GPU/ANE context.
	UsesAccelerator() bool
	// Close releases the model.
	Close() error
}

// DecodingState is the per-attempt decoder. It is never shared between
// goroutines.
type DecodingState interface {
	// Recognize decodes mono 16kHz float32 audio with the given options.
	Recognize(ctx context.Context, samples []float32, opts DecodeOptions) ([]Segment, error)
	// Close releases the state.
	Close() error
}

// Segment is one decoded span as reported by the engine.
type Segment struct {
	Text         string
	NoSpeechProb float64
	TokenProbs   []float32
}

// DecodeOptions configures a single attempt. Sampling is always greedy with
// one candidate, and blank and non-speech tokens are always suppressed.
type DecodeOptions struct {
	Temperature  float32
	Language     string // "auto" or a language tag
	Threads      int
	MaxInitialTS float32
	EntropyThold float32
	LogprobThold float32
}

// DefaultDecodeOptions returns the fixed per-attempt decoding policy with
// language auto-detection and temperature 0.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		Language:     "auto",
		Threads:      2,
		MaxInitialTS: 1.0,
		EntropyThold: 2.4,
		LogprobThold: -1.0,
	}
}

// Open loads modelPath with the named backend.
//
// Only "whispercpp" applies the full decoding policy of DecodeOptions. The
// default "whisper" backend goes through the Go bindings, which cannot set
// MaxInitialTS, LogprobThold, greedy best_of or non-speech suppression,
// and report no-speech only through blank-audio segments.
func Open(backend, modelPath string, useGPU bool) (Engine, error) {
	switch backend {
	case "whispercpp":
		eng, err := NewNativeEngine(modelPath, useGPU)
		if err != nil {
			return nil, err
		}
		return eng, nil
	case "whisper", "":
		eng, err := NewWhisperEngine(modelPath)
		if err != nil {
			return nil, err
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper, whispercpp)", backend)
	}
}
