// Command test-inject delivers a transcript the way a dictation session
// would, using the inject settings from a config file. Focus the target
// window before the countdown ends.
//
// Usage:
//
//	go run ./cmd/test-inject [--config path] [--method type|paste|clipboard] [--text "..."] [--delay 3s]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/inject"
)

func main() {
	configPath := flag.String("config", "", "config file to read inject settings from (default: built-in defaults)")
	method := flag.String("method", "", "override inject.method")
	text := flag.String("text", "Hello from rose!", "transcript to deliver")
	delay := flag.Duration("delay", 3*time.Second, "countdown before delivery")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *method != "" {
		cfg.Inject.Method = *method
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Delivering %q via %s in %s. Focus a text field now.\n", *text, cfg.Inject.Method, *delay)
	if !countdown(ctx, *delay) {
		fmt.Println("Cancelled.")
		return
	}

	notifier := inject.NewNotifier("rose", cfg.Inject.Notify, logger)
	start := time.Now()
	if err := inject.NewInjector(cfg.Inject.Method).Inject(*text); err != nil {
		logger.Error("delivery failed", "method", cfg.Inject.Method, "error", err)
		notifier.Failed("delivery")
		os.Exit(1)
	}
	notifier.Transcribed(*text)
	logger.Info("delivered", "method", cfg.Inject.Method, "runes", len([]rune(*text)),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// countdown prints the remaining whole seconds until d has passed. It
// returns false if ctx is cancelled first.
func countdown(ctx context.Context, d time.Duration) bool {
	deadline := time.After(d)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for left := d; ; {
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return true
		case <-tick.C:
			left -= time.Second
			if left > 0 {
				fmt.Printf("%s...\n", left.Round(time.Second))
			}
		}
	}
}
