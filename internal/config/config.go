package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bounds for user-tunable recognition settings.
const (
	BestOfNMin     = 1
	BestOfNMax     = 10
	BestOfNDefault = 5

	RetainSecondsMin     = 0
	RetainSecondsMax     = 120
	RetainSecondsDefault = 10
)

// Model variants in the order they are tried as fallbacks.
var Variants = []string{"tiny", "base", "small", "medium", "large"}

// Config holds all application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Audio      AudioConfig      `yaml:"audio"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Inject     InjectConfig     `yaml:"inject"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	LogLevel   string           `yaml:"log_level"`
	DebugDir   string           `yaml:"debug_dir"` // raw clips are written here when set

	// ModelPath is the pre-1.0 top-level spelling of model.path.
	ModelPath string `yaml:"model_path,omitempty"`
}

// ModelConfig selects the acoustic model and how long it stays loaded.
type ModelConfig struct {
	Path          string `yaml:"path"`    // explicit ggml file; empty resolves Variant in Dir
	Variant       string `yaml:"variant"` // tiny, base, small, medium, large
	Dir           string `yaml:"dir"`
	RetainSeconds int    `yaml:"retain_seconds"` // idle time before unload; 0 unloads after each session
	UseGPU        bool   `yaml:"use_gpu"`
}

// TranscribeConfig holds recognition settings.
type TranscribeConfig struct {
	Backend           string    `yaml:"backend"`  // "whisper" or "whispercpp"
	Language          string    `yaml:"language"` // "auto" or a language tag
	BestOfN           int       `yaml:"best_of_n"`
	Temperatures      []float32 `yaml:"temperatures"`
	NoSpeechThreshold float64   `yaml:"no_speech_threshold"`
	Threads           int       `yaml:"threads"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate          uint32 `yaml:"sample_rate"`
	Channels            uint32 `yaml:"channels"`
	MaxRecordingSeconds int    `yaml:"max_recording_seconds"`
	FramesPerBuffer     uint32 `yaml:"frames_per_buffer"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Combo string `yaml:"combo"` // e.g. "cmd+shift+space"
	Mode  string `yaml:"mode"`  // "hold" or "toggle"
}

// InjectConfig holds text delivery settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "type", "paste" or "clipboard"
	Notify bool   `yaml:"notify"` // desktop notification per transcript
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. "127.0.0.1:9464"; empty disables
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rose")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns where downloaded models are stored.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "rose", "models")
}

// DefaultTemperatures returns the decoding temperatures tried in order.
func DefaultTemperatures() []float32 {
	return []float32{0.0, 0.2, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4, 1.6, 1.8}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Variant:       "base",
			Dir:           DefaultModelsDir(),
			RetainSeconds: RetainSecondsDefault,
			UseGPU:        true,
		},
		Transcribe: TranscribeConfig{
			Backend:           "whisper",
			Language:          "en",
			BestOfN:           BestOfNDefault,
			Temperatures:      DefaultTemperatures(),
			NoSpeechThreshold: 0.6,
			Threads:           2,
		},
		Audio: AudioConfig{
			SampleRate:          16000,
			Channels:            1,
			MaxRecordingSeconds: 30,
			FramesPerBuffer:     2048,
		},
		Hotkey: HotkeyConfig{
			Combo: "cmd+shift+space",
			Mode:  "toggle",
		},
		Inject: InjectConfig{
			Method: "type",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.ModelPath != "" && cfg.Model.Path == "" {
		cfg.Model.Path = cfg.ModelPath
	}
	cfg.ModelPath = ""

	cfg.Model.Path = expandTilde(cfg.Model.Path)
	cfg.Model.Dir = expandTilde(cfg.Model.Dir)
	cfg.DebugDir = expandTilde(cfg.DebugDir)
	return cfg, nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Transcribe.Temperatures = append([]float32(nil), c.Transcribe.Temperatures...)
	return &out
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		if c.Model.Dir == "" {
			return errors.New("model.dir must not be empty when model.path is unset")
		}
		if !slices.Contains(Variants, c.Model.Variant) {
			return fmt.Errorf("model.variant must be one of %s, got %q", strings.Join(Variants, ", "), c.Model.Variant)
		}
	}
	if c.Model.RetainSeconds < RetainSecondsMin || c.Model.RetainSeconds > RetainSecondsMax {
		return fmt.Errorf("model.retain_seconds must be in [%d, %d], got %d", RetainSecondsMin, RetainSecondsMax, c.Model.RetainSeconds)
	}

	switch c.Transcribe.Backend {
	case "whisper", "whispercpp":
	default:
		return fmt.Errorf("transcribe.backend must be \"whisper\" or \"whispercpp\", got %q", c.Transcribe.Backend)
	}
	if strings.TrimSpace(c.Transcribe.Language) == "" {
		return errors.New("transcribe.language must not be empty (use \"auto\" to detect)")
	}
	if c.Transcribe.BestOfN < BestOfNMin || c.Transcribe.BestOfN > BestOfNMax {
		return fmt.Errorf("transcribe.best_of_n must be in [%d, %d], got %d", BestOfNMin, BestOfNMax, c.Transcribe.BestOfN)
	}
	if len(c.Transcribe.Temperatures) == 0 {
		return errors.New("transcribe.temperatures must not be empty")
	}
	for _, t := range c.Transcribe.Temperatures {
		if t < 0 {
			return fmt.Errorf("transcribe.temperatures must be >= 0, got %v", t)
		}
	}
	if c.Transcribe.NoSpeechThreshold < 0 || c.Transcribe.NoSpeechThreshold > 1 {
		return fmt.Errorf("transcribe.no_speech_threshold must be in [0, 1], got %v", c.Transcribe.NoSpeechThreshold)
	}
	if c.Transcribe.Threads < 1 {
		return fmt.Errorf("transcribe.threads must be > 0, got %d", c.Transcribe.Threads)
	}

	if c.Audio.SampleRate == 0 {
		return errors.New("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels == 0 {
		return errors.New("audio.channels must be > 0")
	}
	if c.Audio.MaxRecordingSeconds <= 0 {
		return errors.New("audio.max_recording_seconds must be > 0")
	}

	if strings.TrimSpace(c.Hotkey.Combo) == "" {
		return errors.New("hotkey.combo must not be empty")
	}
	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Inject.Method {
	case "type", "paste", "clipboard":
	default:
		return fmt.Errorf("inject.method must be \"type\", \"paste\" or \"clipboard\", got %q", c.Inject.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to slog. Unknown values are info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# rose configuration
# Generated on first run. Edit and save; changes apply to the next recording.
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the written path, or "" when a config already
// exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
