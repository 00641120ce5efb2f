package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// blankAudio is the marker whisper emits for segments it decoded as silence.
const blankAudio = "[BLANK_AUDIO]"

// WhisperEngine wraps a whisper.cpp model loaded through the Go bindings.
type WhisperEngine struct {
	model whisper.Model

	// The bindings run every context against the model's single
	// whisper_state, so decoding is serialized here.
	decodeMu sync.Mutex
}

// NewWhisperEngine loads a whisper model from the given path.
// The caller must call Close() when done.
func NewWhisperEngine(modelPath string) (*WhisperEngine, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	return &WhisperEngine{model: model}, nil
}

// Close releases the whisper model resources.
func (e *WhisperEngine) Close() error {
	e.decodeMu.Lock()
	defer e.decodeMu.Unlock()
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}

// UsesAccelerator is true: the bindings load with whisper.cpp's default
// context params, which enable the GPU when one is compiled in.
func (e *WhisperEngine) UsesAccelerator() bool { return true }

// NewState creates a bindings context carrying one attempt's parameters.
func (e *WhisperEngine) NewState() (DecodingState, error) {
	e.decodeMu.Lock()
	defer e.decodeMu.Unlock()
	if e.model == nil {
		return nil, ErrNoEngine
	}
	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}
	return &whisperState{engine: e, ctx: wctx}, nil
}

type whisperState struct {
	engine *WhisperEngine
	ctx    whisper.Context
}

func (s *whisperState) Recognize(ctx context.Context, samples []float32, opts DecodeOptions) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	s.engine.decodeMu.Lock()
	defer s.engine.decodeMu.Unlock()
	if s.engine.model == nil {
		return nil, ErrNoEngine
	}

	if err := applyBindingOptions(s.ctx, s.engine.model.IsMultilingual(), opts); err != nil {
		return nil, err
	}

	if err := s.ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("transcribe: process: %w", err)
	}

	var segments []Segment
	for {
		seg, err := s.ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, bindingSegment(seg))
	}
	return segments, nil
}

func (s *whisperState) Close() error { return nil }

// bindingParams is the part of whisper.Context an attempt configures.
type bindingParams interface {
	SetLanguage(string) error
	SetTranslate(bool)
	SetThreads(uint)
	SetTemperature(float32)
	SetTemperatureFallback(float32)
	SetEntropyThold(float32)
}

var _ bindingParams = whisper.Context(nil)

// applyBindingOptions sets every decode option the bindings expose:
// language, threads, temperature with fallback disabled, and the entropy
// threshold. MaxInitialTS and LogprobThold have no setter, and neither do
// greedy best_of or non-speech token suppression, so those keep the
// whisper.cpp defaults on this backend. English-only models accept no
// language setting and always decode English.
func applyBindingOptions(p bindingParams, multilingual bool, opts DecodeOptions) error {
	if multilingual {
		lang := strings.TrimSpace(opts.Language)
		if lang == "" {
			lang = "auto"
		}
		if err := p.SetLanguage(lang); err != nil {
			return fmt.Errorf("transcribe: set language %q: %w", lang, err)
		}
	}
	p.SetTranslate(false)
	p.SetThreads(uint(max(1, opts.Threads)))
	p.SetTemperature(opts.Temperature)
	p.SetTemperatureFallback(0)
	p.SetEntropyThold(opts.EntropyThold)
	return nil
}

// bindingSegment converts a bindings segment. The bindings do not expose
// the no-speech probability, so a blank-audio marker is reported as
// certain silence with no text.
func bindingSegment(seg whisper.Segment) Segment {
	out := Segment{
		Text:       seg.Text,
		TokenProbs: make([]float32, 0, len(seg.Tokens)),
	}
	if strings.EqualFold(strings.TrimSpace(seg.Text), blankAudio) {
		out.Text = ""
		out.NoSpeechProb = 1
	}
	for _, tok := range seg.Tokens {
		out.TokenProbs = append(out.TokenProbs, tok.P)
	}
	return out
}
