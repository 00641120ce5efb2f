package transcribe

import (
	"slices"
	"testing"
)

func TestWordErrorRate(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		want       ErrorRate
	}{
		{
			name:       "identical",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat sat on the mat",
			want:       ErrorRate{RefWords: 6},
		},
		{
			name:       "substitution",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat sit on the mat",
			want:       ErrorRate{Rate: 1.0 / 6, Substitutions: 1, RefWords: 6},
		},
		{
			name:       "insertion",
			reference:  "the cat sat",
			hypothesis: "the big cat sat",
			want:       ErrorRate{Rate: 1.0 / 3, Insertions: 1, RefWords: 3},
		},
		{
			name:       "deletion",
			reference:  "ask not what your country can do for you",
			hypothesis: "ask what your country can do for you",
			want:       ErrorRate{Rate: 1.0 / 9, Deletions: 1, RefWords: 9},
		},
		{
			name:       "case and punctuation ignored",
			reference:  "Hello, World!",
			hypothesis: "hello world",
			want:       ErrorRate{RefWords: 2},
		},
		{
			name:       "empty reference",
			reference:  "",
			hypothesis: "some words",
			want:       ErrorRate{},
		},
		{
			name:       "empty hypothesis",
			reference:  "some words",
			hypothesis: "",
			want:       ErrorRate{Rate: 1, Deletions: 2, RefWords: 2},
		},
		{
			name:       "completely different",
			reference:  "the cat sat",
			hypothesis: "a dog ran",
			want:       ErrorRate{Rate: 1, Substitutions: 3, RefWords: 3},
		},
		{
			name:       "mixed",
			reference:  "the quick brown fox jumps over the lazy dog",
			hypothesis: "a quick brown cat jumps the lazy dog",
			want:       ErrorRate{Rate: 3.0 / 9, Substitutions: 2, Deletions: 1, RefWords: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WordErrorRate(tt.reference, tt.hypothesis)
			if diff := got.Rate - tt.want.Rate; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.want.Rate)
			}
			got.Rate = tt.want.Rate
			if got != tt.want {
				t.Errorf("WordErrorRate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTranscript(t *testing.T) {
	got := NormalizeTranscript("  Ask NOT, what   your country...  ")
	want := []string{"ask", "not", "what", "your", "country"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeTranscript() = %q, want %q", got, want)
	}
}
