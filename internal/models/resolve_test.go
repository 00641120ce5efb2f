package models

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/chaz8081/rose/internal/config"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		variant string
		want    []string
	}{
		{"base", []string{"ggml-base.en.bin", "ggml-base.bin"}},
		{"medium", []string{"ggml-medium.en.bin", "ggml-medium.bin"}},
		{"large", []string{"ggml-large-v3.bin", "ggml-large.bin", "ggml-large-v2.bin"}},
		{"bogus", []string{"ggml-tiny.en.bin", "ggml-tiny.bin"}},
	}
	for _, tt := range tests {
		if got := Candidates(tt.variant); !slices.Equal(got, tt.want) {
			t.Errorf("Candidates(%q) = %v, want %v", tt.variant, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("prefers english weights", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "ggml-base.bin")
		want := touch(t, dir, "ggml-base.en.bin")
		got, ok := Resolve("base", dir)
		if !ok || got != want {
			t.Errorf("Resolve() = %q, %v; want %q", got, ok, want)
		}
	})

	t.Run("prefix scan", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "ggml-small-q5_1.bin")
		touch(t, dir, "ggml-small.txt")
		got, ok := Resolve("small", dir)
		if !ok || filepath.Base(got) != "ggml-small-q5_1.bin" {
			t.Errorf("Resolve() = %q, %v", got, ok)
		}
	})

	t.Run("later directory", func(t *testing.T) {
		first, second := t.TempDir(), t.TempDir()
		want := touch(t, second, "ggml-large-v2.bin")
		got, ok := Resolve("large", first, second)
		if !ok || got != want {
			t.Errorf("Resolve() = %q, %v; want %q", got, ok, want)
		}
	})

	t.Run("not found", func(t *testing.T) {
		dir := t.TempDir()
		got, ok := Resolve("tiny", dir, filepath.Join(dir, "missing"))
		if ok || got != filepath.Join(dir, "ggml-tiny.en.bin") {
			t.Errorf("Resolve() = %q, %v", got, ok)
		}
	})
}

func TestFallbacks(t *testing.T) {
	dir := t.TempDir()
	large := touch(t, dir, "ggml-large-v3.bin")
	tiny := touch(t, dir, "ggml-tiny.bin")

	got := Fallbacks(dir)
	if !slices.Equal(got, []string{tiny, large}) {
		t.Errorf("Fallbacks() = %v, want [%s %s]", got, tiny, large)
	}
}

func TestPathFor(t *testing.T) {
	dir := t.TempDir()
	explicit := touch(t, dir, "custom.bin")

	if got, ok := PathFor(config.ModelConfig{Path: explicit, Variant: "base"}); !ok || got != explicit {
		t.Errorf("PathFor(explicit) = %q, %v", got, ok)
	}
	if _, ok := PathFor(config.ModelConfig{Path: filepath.Join(dir, "missing.bin")}); ok {
		t.Error("PathFor(missing explicit path) reported found")
	}
	want := touch(t, dir, "ggml-medium.en.bin")
	if got, ok := PathFor(config.ModelConfig{Variant: "medium", Dir: dir}); !ok || got != want {
		t.Errorf("PathFor(variant) = %q, %v; want %q", got, ok, want)
	}
}
