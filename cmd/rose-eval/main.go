// Command rose-eval runs the transcription pipeline over WAV files and
// reports word error rate against reference transcripts.
//
// Usage:
//
//	rose-eval [-config path] [-refs references.json] [-best-of n] [file.wav ...]
//
// With -refs, every sample listed in the references file is evaluated;
// its "file" entries are resolved relative to the references file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/chaz8081/rose/internal/audio"
	"github.com/chaz8081/rose/internal/config"
	"github.com/chaz8081/rose/internal/models"
	"github.com/chaz8081/rose/internal/transcribe"
)

type sample struct {
	Label      string `json:"label"`
	File       string `json:"file"`
	Transcript string `json:"transcript"`
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: built-in defaults)")
	refsPath := flag.String("refs", "", "references.json with labelled samples and transcripts")
	bestOf := flag.Int("best-of", 0, "override transcribe.best_of_n")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *refsPath, *bestOf, flag.Args(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "rose-eval: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, refsPath string, bestOf int, files []string, logger *slog.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if bestOf > 0 {
		cfg.Transcribe.BestOfN = bestOf
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	samples, err := loadSamples(refsPath, files)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no input: pass WAV files or -refs")
	}

	modelPath, ok := models.PathFor(cfg.Model)
	if !ok {
		return fmt.Errorf("no model at %s (run rose -download)", modelPath)
	}
	eng, err := transcribe.Open(cfg.Transcribe.Backend, modelPath, cfg.Model.UseGPU)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := transcribe.NewOrchestrator(logger)
	sc := transcribe.SessionFromConfig(cfg)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAMPLE\tAUDIO\tELAPSED\tRTF\tWER\tTEXT")

	var errs, words int
	for _, s := range samples {
		clip, rate, err := audio.ReadWAV(s.File)
		if err != nil {
			return err
		}
		if rate != int(cfg.Audio.SampleRate) {
			return fmt.Errorf("%s: sample rate %d Hz, want %d Hz", s.File, rate, cfg.Audio.SampleRate)
		}

		res, err := orch.Transcribe(ctx, eng, clip, sc)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Label, err)
		}

		seconds := float64(len(clip)) / float64(rate)
		wer := "-"
		if s.Transcript != "" {
			r := transcribe.WordErrorRate(s.Transcript, res.Text)
			errs += r.Substitutions + r.Insertions + r.Deletions
			words += r.RefWords
			wer = fmt.Sprintf("%.3f", r.Rate)
		}
		text := res.Text
		if res.Empty {
			text = "<" + res.Reason + ">"
		}
		fmt.Fprintf(tw, "%s\t%.1fs\t%s\t%.2f\t%s\t%s\n",
			s.Label, seconds, res.Duration.Round(time.Millisecond),
			res.Duration.Seconds()/seconds, wer, text)
	}
	if words > 0 {
		fmt.Fprintf(tw, "TOTAL\t\t\t\t%.3f\t%d/%d words\n", float64(errs)/float64(words), errs, words)
	}
	return tw.Flush()
}

func loadSamples(refsPath string, files []string) ([]sample, error) {
	var out []sample
	if refsPath != "" {
		data, err := os.ReadFile(refsPath)
		if err != nil {
			return nil, fmt.Errorf("reading references: %w", err)
		}
		var refs struct {
			Samples []sample `json:"samples"`
		}
		if err := json.Unmarshal(data, &refs); err != nil {
			return nil, fmt.Errorf("parsing references: %w", err)
		}
		dir := filepath.Dir(refsPath)
		for _, s := range refs.Samples {
			if !filepath.IsAbs(s.File) {
				s.File = filepath.Join(dir, s.File)
			}
			if s.Label == "" {
				s.Label = filepath.Base(s.File)
			}
			out = append(out, s)
		}
	}
	for _, f := range files {
		out = append(out, sample{Label: filepath.Base(f), File: f})
	}
	return out, nil
}
