// Package session ties capture, model lifecycle, recognition and delivery
// into dictation sessions.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/metrics"
	"github.com/chaz8081/rose/internal/models"
	"github.com/chaz8081/rose/internal/transcribe"
)

// OpenFunc loads a model file with a backend.
type OpenFunc func(backend, path string, useGPU bool) (transcribe.Engine, error)

// modelSettings is the part of the config that decides which model is
// loaded and how long it is kept.
type modelSettings struct {
	backend string
	model   config.ModelConfig
}

func settingsOf(cfg *config.Config) modelSettings {
	return modelSettings{backend: cfg.Transcribe.Backend, model: cfg.Model}
}

// sameModel reports whether a and b load the same weights the same way.
func (a modelSettings) sameModel(b modelSettings) bool {
	return a.backend == b.backend &&
		a.model.Path == b.model.Path &&
		a.model.Variant == b.model.Variant &&
		a.model.Dir == b.model.Dir &&
		a.model.UseGPU == b.model.UseGPU
}

// resident is one loaded engine and the sessions using it.
type resident struct {
	engine  transcribe.Engine
	path    string
	refs    int
	retired bool // closed when the last reference is released
}

// ModelKeeper owns the acoustic model. It loads lazily, can preload when
// recording starts, and unloads after the configured idle time. A settings
// change that selects different weights retires the current model.
type ModelKeeper struct {
	open    OpenFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	// afterFunc schedules idle unloads. Defaults to time.AfterFunc.
	afterFunc func(time.Duration, func()) *time.Timer

	mu       sync.Mutex
	settings modelSettings
	cur      *resident
	gen      uint64 // bumped to cancel a pending unload
	timer    *time.Timer
	closed   bool
}

// NewModelKeeper returns a keeper for cfg's model. open defaults to
// transcribe.Open.
func NewModelKeeper(cfg *config.Config, open OpenFunc, m *metrics.Metrics, logger *slog.Logger) *ModelKeeper {
	if open == nil {
		open = transcribe.Open
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelKeeper{
		open:      open,
		logger:    logger.With("component", "model"),
		metrics:   m,
		afterFunc: time.AfterFunc,
		settings:  settingsOf(cfg),
	}
}

// Acquire returns the loaded engine, loading it first if needed. The
// engine stays loaded until release is called.
func (k *ModelKeeper) Acquire() (eng transcribe.Engine, release func(), err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, nil, errors.New("session: model keeper closed")
	}
	k.cancelUnloadLocked()
	if err := k.ensureLoadedLocked(); err != nil {
		return nil, nil, err
	}

	r := k.cur
	r.refs++
	var once sync.Once
	return r.engine, func() { once.Do(func() { k.release(r) }) }, nil
}

// Preload loads the model in the background if it is not resident. It
// does not hold a reference, so an unused preload still idles out. With
// retain_seconds 0 it does nothing: the model would be unloaded as soon
// as it finished loading.
func (k *ModelKeeper) Preload() {
	k.mu.Lock()
	skip := k.closed || k.cur != nil || k.settings.model.RetainSeconds <= 0
	k.mu.Unlock()
	if skip {
		return
	}

	go func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		if k.closed || k.cur != nil {
			return
		}
		if err := k.ensureLoadedLocked(); err != nil {
			k.logger.Warn("model preload failed", "error", err)
			return
		}
		k.scheduleUnloadLocked()
	}()
}

// Loaded reports whether a model is resident.
func (k *ModelKeeper) Loaded() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cur != nil
}

// Reconfigure applies new settings. If they select different weights the
// resident model is retired: closed now when idle, otherwise when its last
// session releases it. The next Acquire loads the new model.
func (k *ModelKeeper) Reconfigure(cfg *config.Config) {
	next := settingsOf(cfg)

	k.mu.Lock()
	defer k.mu.Unlock()

	prev := k.settings
	k.settings = next
	if k.cur == nil || prev.sameModel(next) {
		return
	}

	k.logger.Info("model settings changed, retiring loaded model", "path", k.cur.path)
	k.cancelUnloadLocked()
	k.retireLocked()
}

// Close releases the model and stops any pending unload.
func (k *ModelKeeper) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	k.cancelUnloadLocked()
	k.retireLocked()
	return nil
}

func (k *ModelKeeper) release(r *resident) {
	k.mu.Lock()
	defer k.mu.Unlock()

	r.refs--
	if r.refs > 0 {
		return
	}
	if r.retired {
		k.closeEngine(r)
		return
	}
	if r == k.cur {
		k.scheduleUnloadLocked()
	}
}

func (k *ModelKeeper) ensureLoadedLocked() error {
	if k.cur != nil {
		return nil
	}

	s := k.settings
	tried := map[string]bool{}
	var errs []error

	try := func(path string) bool {
		if path == "" || tried[path] {
			return false
		}
		tried[path] = true

		start := time.Now()
		eng, err := k.open(s.backend, path, s.model.UseGPU)
		k.metrics.ObserveModelLoad(time.Since(start).Seconds(), err)
		if err != nil {
			k.logger.Warn("model load failed", "path", path, "error", err)
			errs = append(errs, err)
			return false
		}
		k.logger.Info("model loaded", "path", path, "backend", s.backend,
			"elapsed", time.Since(start).Round(time.Millisecond))
		k.cur = &resident{engine: eng, path: path}
		return true
	}

	if path, ok := models.PathFor(s.model); ok && try(path) {
		return nil
	}
	for _, path := range models.Fallbacks(models.SearchDirs(s.model)...) {
		if try(path) {
			return nil
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("session: no %s model found in %v: %w", s.model.Variant, models.SearchDirs(s.model), transcribe.ErrNoEngine)
	}
	return fmt.Errorf("session: load model: %w", errors.Join(errs...))
}

func (k *ModelKeeper) scheduleUnloadLocked() {
	k.cancelUnloadLocked()
	if k.closed || k.cur == nil {
		return
	}

	retain := time.Duration(k.settings.model.RetainSeconds) * time.Second
	if retain <= 0 {
		k.retireLocked()
		return
	}
	gen := k.gen
	k.timer = k.afterFunc(retain, func() { k.unloadIfIdle(gen) })
}

func (k *ModelKeeper) unloadIfIdle(gen uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if gen != k.gen || k.cur == nil || k.cur.refs > 0 {
		return
	}
	k.logger.Info("unloading idle model", "path", k.cur.path)
	k.retireLocked()
}

func (k *ModelKeeper) cancelUnloadLocked() {
	k.gen++
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// retireLocked detaches the current model, closing it if no session holds it.
func (k *ModelKeeper) retireLocked() {
	r := k.cur
	if r == nil {
		return
	}
	k.cur = nil
	r.retired = true
	if r.refs == 0 {
		k.closeEngine(r)
	}
}

func (k *ModelKeeper) closeEngine(r *resident) {
	if err := r.engine.Close(); err != nil {
		k.logger.Warn("model close failed", "path", r.path, "error", err)
	}
	k.metrics.ObserveModelUnload()
}
