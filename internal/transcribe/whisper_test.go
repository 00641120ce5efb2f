package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/rose/internal/audio"
)

// whisperModelPath resolves the path to the whisper model relative to the project root.
func whisperModelPath(t testing.TB) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.en.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s (run 'task whisper-model' first): %v", path, err)
	}
	return path
}

// loadWAVSamples decodes a WAV fixture, skipping the test when it is absent.
func loadWAVSamples(t testing.TB, wavPath string) []float32 {
	t.Helper()
	if _, err := os.Stat(wavPath); err != nil {
		t.Skipf("WAV file not found at %s: %v", wavPath, err)
	}
	samples, rate, err := audio.ReadWAV(wavPath)
	if err != nil {
		t.Fatalf("decode WAV %s: %v", wavPath, err)
	}
	if rate != 16000 {
		t.Skipf("%s is %d Hz, want 16000", wavPath, rate)
	}
	return samples
}

func jfkSamples(t testing.TB) []float32 {
	t.Helper()
	return loadWAVSamples(t, filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav"))
}

func TestBindingSegment(t *testing.T) {
	tests := []struct {
		name         string
		in           whisper.Segment
		wantText     string
		wantNoSpeech float64
		wantTokens   int
	}{
		{
			name:       "speech",
			in:         whisper.Segment{Text: " And so", Tokens: []whisper.Token{{P: 0.9}, {P: 0.8}}},
			wantText:   " And so",
			wantTokens: 2,
		},
		{
			name:         "blank audio marker",
			in:           whisper.Segment{Text: " [BLANK_AUDIO]", Tokens: []whisper.Token{{P: 0.4}}},
			wantText:     "",
			wantNoSpeech: 1,
			wantTokens:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bindingSegment(tt.in)
			if got.Text != tt.wantText || got.NoSpeechProb != tt.wantNoSpeech || len(got.TokenProbs) != tt.wantTokens {
				t.Errorf("bindingSegment() = %+v", got)
			}
		})
	}
}

// recordingParams captures what an attempt sets on a bindings context.
type recordingParams struct {
	langErr error

	language    string
	langSet     bool
	translate   bool
	threads     uint
	temperature float32
	fallback    float32
	entropy     float32
}

func (p *recordingParams) SetLanguage(l string) error {
	p.language, p.langSet = l, true
	return p.langErr
}
func (p *recordingParams) SetTranslate(v bool)              { p.translate = v }
func (p *recordingParams) SetThreads(n uint)                { p.threads = n }
func (p *recordingParams) SetTemperature(t float32)         { p.temperature = t }
func (p *recordingParams) SetTemperatureFallback(t float32) { p.fallback = t }
func (p *recordingParams) SetEntropyThold(t float32)        { p.entropy = t }

func TestApplyBindingOptions(t *testing.T) {
	opts := DefaultDecodeOptions()
	opts.Temperature = 0.4
	opts.Threads = 0
	opts.Language = " de "

	tests := []struct {
		name         string
		multilingual bool
		language     string
		wantLang     string
		wantLangSet  bool
	}{
		{"multilingual pinned", true, " de ", "de", true},
		{"multilingual blank is auto", true, "", "auto", true},
		{"english-only ignores language", false, "de", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := opts
			o.Language = tt.language
			p := &recordingParams{translate: true, fallback: 0.2}
			if err := applyBindingOptions(p, tt.multilingual, o); err != nil {
				t.Fatalf("applyBindingOptions() error: %v", err)
			}
			if p.langSet != tt.wantLangSet || p.language != tt.wantLang {
				t.Errorf("language = %q (set %v), want %q (set %v)", p.language, p.langSet, tt.wantLang, tt.wantLangSet)
			}
			if p.translate {
				t.Error("translate left on")
			}
			if p.threads != 1 {
				t.Errorf("threads = %d, want 1", p.threads)
			}
			if p.temperature != 0.4 || p.fallback != 0 {
				t.Errorf("temperature = %v fallback = %v, want 0.4 and 0", p.temperature, p.fallback)
			}
			if p.entropy != 2.4 {
				t.Errorf("entropy threshold = %v, want 2.4", p.entropy)
			}
		})
	}
}

func TestApplyBindingOptionsLanguageError(t *testing.T) {
	p := &recordingParams{langErr: errors.New("unsupported language")}
	if err := applyBindingOptions(p, true, DefaultDecodeOptions()); err == nil {
		t.Error("expected language error")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("vosk", "model.bin", false); err == nil {
		t.Error("Open() with unknown backend should fail")
	}
}

func TestNewWhisperEngineBadPath(t *testing.T) {
	if _, err := NewWhisperEngine("/nonexistent/model.bin"); err == nil {
		t.Fatal("NewWhisperEngine with bad path should return error")
	}
}

func TestWhisperEngineJFK(t *testing.T) {
	path := whisperModelPath(t)
	samples := jfkSamples(t)

	eng, err := NewWhisperEngine(path)
	if err != nil {
		t.Fatalf("NewWhisperEngine: %v", err)
	}
	defer func() { _ = eng.Close() }()

	o := NewOrchestrator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sc := testSession(2, 0, 0.2)
	res, err := o.Transcribe(context.Background(), eng, samples, sc)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Text), "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", res.Text)
	}
}

func TestWhisperEngineSilence(t *testing.T) {
	eng, err := NewWhisperEngine(whisperModelPath(t))
	if err != nil {
		t.Fatalf("NewWhisperEngine: %v", err)
	}
	defer func() { _ = eng.Close() }()

	state, err := eng.NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	defer func() { _ = state.Close() }()

	opts := DefaultDecodeOptions()
	if _, err := state.Recognize(context.Background(), make([]float32, 16000), opts); err != nil {
		t.Fatalf("Recognize on silence returned error: %v", err)
	}
}
