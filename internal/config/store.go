package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Store holds the live configuration. Readers take an immutable snapshot
// with Current; a recording session reads it once when it starts.
type Store struct {
	mu   sync.RWMutex
	cur  *Config
	subs map[int]func(*Config)
	next int
}

// NewStore returns a Store holding cfg, which must already be valid.
func NewStore(cfg *Config) *Store {
	return &Store{cur: cfg.Clone(), subs: make(map[int]func(*Config))}
}

// Current returns a private copy of the active configuration.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// Subscribe registers fn to receive every accepted update. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(*Config)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Update validates cfg, makes it current, and notifies subscribers
// outside the lock. Each subscriber gets its own copy.
func (s *Store) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: rejected update: %w", err)
	}

	s.mu.Lock()
	s.cur = cfg.Clone()
	subs := make([]func(*Config), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(cfg.Clone())
	}
	return nil
}

// Watch polls path every interval and applies the file whenever its
// modification time changes. Invalid files are logged and ignored. Watch
// returns when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, path string, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config", "path", path)

	var last time.Time
	if fi, err := os.Stat(path); err == nil {
		last = fi.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(path)
			if err != nil || fi.ModTime().Equal(last) {
				continue
			}
			last = fi.ModTime()

			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			if err := s.Update(cfg); err != nil {
				logger.Warn("config reload rejected", "error", err)
				continue
			}
			logger.Info("config reloaded")
		}
	}
}
