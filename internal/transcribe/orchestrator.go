package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/dsp"
)

// Reasons reported on an empty Result.
const (
	ReasonNoEngine = "no_engine"
	ReasonNoAudio  = "no_audio"
	ReasonTooShort = "too_short"
	ReasonNoSpeech = "no_speech"
)

// maxAcceleratorAttempts bounds parallel attempts that share one GPU context.
const maxAcceleratorAttempts = 2

// SessionConfig is the immutable snapshot of settings a session runs with.
type SessionConfig struct {
	BestOfN           int
	Temperatures      []float32
	Language          string
	Threads           int
	NoSpeechThreshold float64
	DSP               dsp.Params
}

// SessionFromConfig snapshots the recognition settings of cfg. The returned
// value shares nothing with cfg.
func SessionFromConfig(cfg *config.Config) SessionConfig {
	p := dsp.DefaultParams()
	p.SampleRate = int(cfg.Audio.SampleRate)
	return SessionConfig{
		BestOfN:           cfg.Transcribe.BestOfN,
		Temperatures:      slices.Clone(cfg.Transcribe.Temperatures),
		Language:          cfg.Transcribe.Language,
		Threads:           cfg.Transcribe.Threads,
		NoSpeechThreshold: cfg.Transcribe.NoSpeechThreshold,
		DSP:               p,
	}
}

// Result is the outcome of one transcription session.
type Result struct {
	Text     string
	Empty    bool
	Reason   string // set when Empty
	Best     Attempt
	Attempts []Attempt
	Fallback bool // the permissive conditioning path was used
	Duration time.Duration
}

// Orchestrator conditions a clip, runs parallel recognition attempts at
// different temperatures, and selects the best transcript.
type Orchestrator struct {
	logger *slog.Logger

	// NumCPU reports the hardware concurrency. Defaults to runtime.NumCPU.
	NumCPU func() int
}

// NewOrchestrator returns an Orchestrator that logs through logger.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		logger: logger.With("component", "transcribe"),
		NumCPU: runtime.NumCPU,
	}
}

// AttemptCount returns how many attempts run in parallel for the given
// settings: bestOfN bounded by the number of temperatures and the hardware.
// An accelerator-backed engine is capped at two concurrent attempts.
func AttemptCount(bestOfN, temperatures, numCPU int, accelerator bool) int {
	limit := max(1, numCPU)
	if accelerator {
		limit = min(limit, maxAcceleratorAttempts)
	}
	return max(0, min(bestOfN, temperatures, limit))
}

// Transcribe runs one session over clip. eng may be nil when no model is
// loaded, which yields an empty result. The error return is reserved for
// cancellation of ctx.
func (o *Orchestrator) Transcribe(ctx context.Context, eng Engine, clip []float32, sc SessionConfig) (Result, error) {
	start := time.Now()
	res, err := o.transcribe(ctx, eng, clip, sc)
	res.Duration = time.Since(start)
	return res, err
}

func (o *Orchestrator) transcribe(ctx context.Context, eng Engine, clip []float32, sc SessionConfig) (Result, error) {
	if eng == nil {
		o.logger.Warn("no model loaded, skipping transcription")
		return emptyResult(ReasonNoEngine), nil
	}
	if len(clip) == 0 {
		return emptyResult(ReasonNoAudio), nil
	}

	p := sc.DSP
	minSamples := p.SampleRate / 2

	audio := dsp.Preprocess(clip, p)
	energy, zcr := dsp.Stats(audio)
	o.logger.Debug("preprocessed clip",
		"samples_in", len(clip),
		"samples_out", len(audio),
		"energy", energy,
		"zcr", zcr,
	)

	fallback := false
	if len(audio) < minSamples || !p.VoiceActive(audio) {
		fallback = true
		audio = dsp.Fallback(clip, p)
		if len(audio) < minSamples {
			o.logger.Debug("clip too short after fallback", "samples", len(audio), "min", minSamples)
			r := emptyResult(ReasonTooShort)
			r.Fallback = true
			return r, nil
		}
	}

	temps := slices.Clone(sc.Temperatures)
	slices.Sort(temps)
	numCPU := runtime.NumCPU()
	if o.NumCPU != nil {
		numCPU = o.NumCPU()
	}
	k := AttemptCount(sc.BestOfN, len(temps), numCPU, eng.UsesAccelerator())
	if k == 0 {
		return Result{}, fmt.Errorf("transcribe: no attempts configured (best_of_n=%d, temperatures=%d)", sc.BestOfN, len(temps))
	}

	base := DefaultDecodeOptions()
	if sc.Language != "" {
		base.Language = sc.Language
	}
	if sc.Threads > 0 {
		base.Threads = sc.Threads
	}

	attempts := make([]Attempt, k)
	var wg sync.WaitGroup
	for i := range k {
		opts := base
		opts.Temperature = temps[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempts[i] = o.runAttempt(ctx, eng, audio, opts)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	best, _ := SelectBest(attempts)
	for _, a := range attempts {
		o.logger.Debug("attempt",
			"temperature", a.Temperature,
			"avg_logprob", a.AvgLogprob,
			"no_speech_prob", a.NoSpeechProb,
			"score", a.Score,
			"best", a.Temperature == best.Temperature,
		)
	}

	res := Result{Best: best, Attempts: attempts, Fallback: fallback}
	text := strings.TrimSpace(best.Text)
	if best.NoSpeechProb > sc.NoSpeechThreshold && text == "" {
		res.Empty = true
		res.Reason = ReasonNoSpeech
		return res, nil
	}
	res.Text = text
	return res, nil
}

// runAttempt decodes audio once. Any failure, including a panic in the
// engine, produces a degenerate attempt instead of aborting the session.
func (o *Orchestrator) runAttempt(ctx context.Context, eng Engine, audio []float32, opts DecodeOptions) (a Attempt) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("recognition attempt panicked", "temperature", opts.Temperature, "panic", r)
			a = degenerateAttempt(opts.Temperature)
		}
	}()

	state, err := eng.NewState()
	if err != nil {
		o.logger.Warn("failed to create decoding state", "temperature", opts.Temperature, "error", err)
		return degenerateAttempt(opts.Temperature)
	}
	defer func() {
		if err := state.Close(); err != nil {
			o.logger.Warn("failed to close decoding state", "error", err)
		}
	}()

	segments, err := state.Recognize(ctx, audio, opts)
	if err != nil {
		o.logger.Warn("recognition attempt failed", "temperature", opts.Temperature, "error", err)
		return degenerateAttempt(opts.Temperature)
	}
	a = aggregateSegments(segments, opts.Temperature)
	if math.IsInf(a.AvgLogprob, -1) {
		o.logger.Debug("attempt produced no scorable tokens", "temperature", opts.Temperature)
	}
	return a
}

func emptyResult(reason string) Result {
	return Result{Empty: true, Reason: reason}
}
