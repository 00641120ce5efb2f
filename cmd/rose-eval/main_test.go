package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSamples(t *testing.T) {
	dir := t.TempDir()
	refs := filepath.Join(dir, "references.json")
	data := `{"samples": [
		{"label": "jfk", "file": "jfk.wav", "transcript": "ask not"},
		{"file": "/abs/other.wav"}
	]}`
	if err := os.WriteFile(refs, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := loadSamples(refs, []string{"extra/clip.wav"})
	if err != nil {
		t.Fatalf("loadSamples() error: %v", err)
	}
	want := []sample{
		{Label: "jfk", File: filepath.Join(dir, "jfk.wav"), Transcript: "ask not"},
		{Label: "other.wav", File: "/abs/other.wav"},
		{Label: "clip.wav", File: "extra/clip.wav"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadSamplesBadJSON(t *testing.T) {
	refs := filepath.Join(t.TempDir(), "references.json")
	if err := os.WriteFile(refs, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSamples(refs, nil); err == nil {
		t.Error("expected parse error")
	}
}
