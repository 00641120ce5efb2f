package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chaz8081/rose/internal/audio"
	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/hotkey"
	"github.com/chaz8081/rose/internal/inject"
	"github.com/chaz8081/rose/internal/metrics"
	"github.com/chaz8081/rose/internal/models"
	"github.com/chaz8081/rose/internal/session"
	"github.com/chaz8081/rose/internal/transcribe"
)

// configPollInterval is how often the config file is checked for edits.
const configPollInterval = 2 * time.Second

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/rose/config.yaml)")
	download := flag.Bool("download", false, "interactively download a whisper model and exit")
	flag.Parse()

	// Load configuration
	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *download {
		p, err := models.RunInteractiveDownload(ctx, os.Stdin, os.Stdout, cfg.Model.Dir, config.Variants)
		if err != nil {
			fmt.Fprintf(os.Stderr, "download: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Model ready at %s\n", p)
		return
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey.Combo)
	if err != nil {
		logger.Error("invalid hotkey", "combo", cfg.Hotkey.Combo, "error", err)
		os.Exit(1)
	}

	printBanner(cfg, combo)

	if p, ok := models.PathFor(cfg.Model); ok {
		logger.Info("model selected", "path", p, "backend", cfg.Transcribe.Backend)
	} else {
		logger.Warn("model not found; run with -download to fetch one", "expected", p)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	// Live configuration
	store := config.NewStore(cfg)
	if path != "" {
		go store.Watch(ctx, path, configPollInterval, logger)
	}

	// Initialize audio recorder
	recorder, err := audio.NewRecorder(audio.RecorderConfig{
		SampleRate:          cfg.Audio.SampleRate,
		Channels:            cfg.Audio.Channels,
		FramesPerBuffer:     cfg.Audio.FramesPerBuffer,
		MaxRecordingSeconds: cfg.Audio.MaxRecordingSeconds,
	})
	if err != nil {
		logger.Error("failed to initialize audio recorder; ensure microphone access is granted", "error", err)
		os.Exit(1)
	}
	logger.Info("audio recorder ready", "sample_rate", cfg.Audio.SampleRate, "channels", cfg.Audio.Channels)

	keeper := session.NewModelKeeper(cfg, nil, m, logger)
	ctrl := session.NewController(session.Deps{
		Recorder:     recorder,
		Keeper:       keeper,
		Orchestrator: transcribe.NewOrchestrator(logger),
		Store:        store,
		Injector:     inject.NewInjector(cfg.Inject.Method),
		Notifier:     inject.NewNotifier("rose", cfg.Inject.Notify, logger),
		Metrics:      m,
		Logger:       logger,
	})
	ctrl.StartWorker(ctx)

	unsubscribe := store.Subscribe(func(next *config.Config) {
		keeper.Reconfigure(next)
		if next.Inject.Method != cfg.Inject.Method || next.Hotkey != cfg.Hotkey {
			logger.Warn("hotkey and delivery changes apply after restart")
		}
	})
	defer unsubscribe()

	shutdown := func() {
		if recorder.IsRecording() {
			recorder.StopRecording()
		}
		ctrl.Close()
		keeper.Close()
		recorder.Close()
	}

	// Initialize hotkey listener
	listener := hotkey.NewListener(combo, cfg.Hotkey.Mode)
	logger.Info("hotkey listener ready", "combo", combo.Label, "mode", cfg.Hotkey.Mode)

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go listener.Start()

	logger.Info(fmt.Sprintf("Ready! Press %s to dictate. Ctrl+C to quit.", combo.Label))

	// Main event loop
	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Info("hotkey listener stopped")
				cancel()
				shutdown()
				return
			}
			ctrl.HandleEvent(ev)

		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig)
			cancel()
			shutdown()
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, writing one with defaults on first run. The
// returned path is the file to watch, empty when running on defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	written, err := config.WriteDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not write default config: %v\n", err)
		return config.Default(), "", nil
	}
	if written != "" {
		fmt.Fprintf(os.Stderr, "Wrote default config to %s\n", written)
	}

	defaultPath := config.DefaultConfigPath()
	cfg, err := config.Load(defaultPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
	}
	return cfg, defaultPath, nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, combo hotkey.Combo) {
	model := cfg.Model.Path
	if model == "" {
		model = cfg.Model.Variant + " in " + cfg.Model.Dir
	}
	fmt.Println("=== rose ===")
	fmt.Printf("  Model:   %s (%s, best of %d)\n", model, cfg.Transcribe.Backend, cfg.Transcribe.BestOfN)
	fmt.Printf("  Hotkey:  %s (%s mode)\n", combo.Label, cfg.Hotkey.Mode)
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Inject:  %s\n", cfg.Inject.Method)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("============")
}
