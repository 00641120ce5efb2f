package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/rose/internal/audio"
	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/hotkey"
	"github.com/chaz8081/rose/internal/inject"
	"github.com/chaz8081/rose/internal/metrics"
	"github.com/chaz8081/rose/internal/transcribe"
)

// queueDepth bounds clips waiting for the worker.
const queueDepth = 8

// reasonBlank is reported when recognition succeeded but produced no text.
const reasonBlank = "blank"

// ErrQueueFull is returned by StopRecording when the worker is too far behind.
var ErrQueueFull = errors.New("session: transcription queue full")

// Recorder captures a clip between StartRecording and StopRecording.
type Recorder interface {
	StartRecording() error
	StopRecording() int
	TakeClip() []float32
	IsRecording() bool
}

var _ Recorder = (*audio.Recorder)(nil)

// Outcome is the record of one finished session.
type Outcome struct {
	ID          uuid.UUID
	Result      transcribe.Result
	ClipSeconds float64
	Delivered   bool
	Err         error
}

// Controller runs dictation sessions: it starts and stops capture, queues
// clips for a single worker, and delivers the transcript.
type Controller struct {
	rec      Recorder
	keeper   *ModelKeeper
	orch     *transcribe.Orchestrator
	store    *config.Store
	injector inject.TextInjector
	notifier *inject.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// OnOutcome, when set, is called by the worker after each session.
	OnOutcome func(Outcome)

	mu      sync.Mutex
	jobs    chan job
	stopped bool
	wg      sync.WaitGroup
}

type job struct {
	id   uuid.UUID
	clip []float32
	cfg  *config.Config
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Recorder     Recorder
	Keeper       *ModelKeeper
	Orchestrator *transcribe.Orchestrator
	Store        *config.Store
	Injector     inject.TextInjector
	Notifier     *inject.Notifier // optional
	Metrics      *metrics.Metrics // optional
	Logger       *slog.Logger
}

// NewController returns a Controller. Call StartWorker before recording.
func NewController(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	orch := d.Orchestrator
	if orch == nil {
		orch = transcribe.NewOrchestrator(logger)
	}
	return &Controller{
		rec:      d.Recorder,
		keeper:   d.Keeper,
		orch:     orch,
		store:    d.Store,
		injector: d.Injector,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   logger.With("component", "session"),
		jobs:     make(chan job, queueDepth),
	}
}

// StartWorker processes queued clips in the background until ctx is
// cancelled or Close is called. Clips are handled one at a time in the
// order they were recorded.
func (c *Controller) StartWorker(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.work(ctx)
	}()
}

func (c *Controller) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-c.jobs:
			if !ok {
				return
			}
			c.process(ctx, j)
		}
	}
}

// Close stops accepting clips and waits for queued ones to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.jobs)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// HandleEvent maps a hotkey event onto the recording state.
func (c *Controller) HandleEvent(ev hotkey.Event) {
	var err error
	switch ev.Type {
	case hotkey.EventStart:
		err = c.StartRecording()
	case hotkey.EventStop:
		_, err = c.StopRecording()
	}
	if err != nil {
		c.logger.Error("hotkey action failed", "event", ev.Type, "error", err)
	}
}

// Toggle starts a recording, or stops the active one.
func (c *Controller) Toggle() error {
	if c.rec.IsRecording() {
		_, err := c.StopRecording()
		return err
	}
	return c.StartRecording()
}

// StartRecording begins capture and warms the model in the background.
func (c *Controller) StartRecording() error {
	if err := c.rec.StartRecording(); err != nil {
		return fmt.Errorf("session: start recording: %w", err)
	}
	if c.keeper != nil {
		c.keeper.Preload()
	}
	c.logger.Info("recording")
	return nil
}

// StopRecording ends capture and queues the clip. It returns the session
// ID, or uuid.Nil when no recording was active.
func (c *Controller) StopRecording() (uuid.UUID, error) {
	if c.rec.StopRecording() < 0 {
		return uuid.Nil, nil
	}
	j := job{id: uuid.New(), clip: c.rec.TakeClip(), cfg: c.store.Current()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return uuid.Nil, errors.New("session: controller closed")
	}
	select {
	case c.jobs <- j:
	default:
		c.metrics.ObserveError()
		return uuid.Nil, ErrQueueFull
	}
	c.logger.Info("captured clip", "session_id", j.id,
		"seconds", clipSeconds(j.clip, j.cfg))
	return j.id, nil
}

func (c *Controller) process(ctx context.Context, j job) {
	logger := c.logger.With("session_id", j.id)
	out := Outcome{ID: j.id, ClipSeconds: clipSeconds(j.clip, j.cfg)}
	defer func() {
		if c.OnOutcome != nil {
			c.OnOutcome(out)
		}
	}()

	if j.cfg.DebugDir != "" {
		c.dumpClip(logger, j)
	}

	var eng transcribe.Engine
	if c.keeper != nil {
		e, release, err := c.keeper.Acquire()
		if err != nil {
			logger.Error("model unavailable", "error", err)
		} else {
			eng = e
			defer release()
		}
	}

	res, err := c.orch.Transcribe(ctx, eng, j.clip, transcribe.SessionFromConfig(j.cfg))
	out.Result = res
	if err != nil {
		out.Err = err
		c.metrics.ObserveError()
		logger.Error("transcription failed", "error", err)
		return
	}
	c.metrics.ObserveSession(res, out.ClipSeconds)

	if res.Empty || res.Text == "" {
		reason := res.Reason
		if reason == "" {
			reason = reasonBlank
		}
		logger.Info("no transcript", "reason", reason,
			"elapsed", res.Duration.Round(time.Millisecond))
		c.notifier.Failed(reason)
		return
	}
	logger.Info("transcribed", "elapsed", res.Duration.Round(time.Millisecond),
		"temperature", res.Best.Temperature, "chars", len(res.Text))
	logger.Debug("transcript", "text", res.Text)

	if err := c.injector.Inject(res.Text); err != nil {
		out.Err = err
		if c.metrics != nil {
			c.metrics.DeliveryFailures.Inc()
		}
		logger.Error("text injection failed", "error", err)
		return
	}
	out.Delivered = true
	c.notifier.Transcribed(res.Text)
}

func (c *Controller) dumpClip(logger *slog.Logger, j job) {
	if err := os.MkdirAll(j.cfg.DebugDir, 0o755); err != nil {
		logger.Warn("debug dir unavailable", "error", err)
		return
	}
	path := filepath.Join(j.cfg.DebugDir, fmt.Sprintf("%s-%s.wav",
		time.Now().Format("20060102-150405"), j.id))
	if err := audio.WriteWAV(path, j.clip, int(j.cfg.Audio.SampleRate)); err != nil {
		logger.Warn("debug dump failed", "error", err)
		return
	}
	logger.Debug("wrote clip", "path", path)
}

func clipSeconds(clip []float32, cfg *config.Config) float64 {
	if cfg.Audio.SampleRate == 0 {
		return 0
	}
	return float64(len(clip)) / float64(cfg.Audio.SampleRate)
}
