package transcribe

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		avgLogprob, noSpeech, want float64
	}{
		{-0.5, 0.2, -0.4},
		{-0.4, 0.9, -0.04},
		{-0.9, 0, -0.9},
		{-1, 1, 0},
	}
	for _, tt := range tests {
		if got := Score(tt.avgLogprob, tt.noSpeech); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Score(%v, %v) = %v, want %v", tt.avgLogprob, tt.noSpeech, got, tt.want)
		}
	}
}

func TestSelectBest(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(-1)

	tests := []struct {
		name     string
		scores   []float64
		wantIdx  int
		wantNone bool
	}{
		{name: "empty", wantNone: true},
		{name: "single", scores: []float64{-3}, wantIdx: 0},
		{name: "max wins", scores: []float64{-0.4, -0.04, -0.9}, wantIdx: 1},
		{name: "first of equal wins", scores: []float64{-0.2, -0.1, -0.1}, wantIdx: 1},
		{name: "degenerate loses", scores: []float64{inf, -2.5}, wantIdx: 1},
		{name: "later NaN never wins", scores: []float64{-0.7, nan, -0.8}, wantIdx: 0},
		{name: "NaN first is kept", scores: []float64{nan, inf, -0.3}, wantIdx: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := make([]Attempt, len(tt.scores))
			for i, s := range tt.scores {
				attempts[i] = Attempt{Score: s, Temperature: float32(i)}
			}
			got, ok := SelectBest(attempts)
			if ok == tt.wantNone {
				t.Fatalf("SelectBest() ok = %v, want %v", ok, !tt.wantNone)
			}
			if ok && got.Temperature != float32(tt.wantIdx) {
				t.Errorf("SelectBest() picked attempt %v, want %d", got.Temperature, tt.wantIdx)
			}
		})
	}
}

func TestAggregateSegments(t *testing.T) {
	t.Run("joins text and averages log probabilities", func(t *testing.T) {
		a := aggregateSegments([]Segment{
			{Text: " Hello", NoSpeechProb: 0.1, TokenProbs: []float32{0.5, 0.5}},
			{Text: "", NoSpeechProb: 0.3},
			{Text: "world.", NoSpeechProb: 0.2, TokenProbs: []float32{0.25, 0}},
		}, 0.4)

		if a.Text != " Hello world." {
			t.Errorf("Text = %q, want %q", a.Text, " Hello world.")
		}
		if a.NoSpeechProb != 0.3 {
			t.Errorf("NoSpeechProb = %v, want 0.3", a.NoSpeechProb)
		}
		wantAvg := (2*math.Log(0.5) + math.Log(0.25)) / 3
		if math.Abs(a.AvgLogprob-wantAvg) > 1e-6 {
			t.Errorf("AvgLogprob = %v, want %v", a.AvgLogprob, wantAvg)
		}
		if math.Abs(a.Score-Score(wantAvg, 0.3)) > 1e-6 {
			t.Errorf("Score = %v, want %v", a.Score, Score(wantAvg, 0.3))
		}
		if a.Temperature != 0.4 {
			t.Errorf("Temperature = %v, want 0.4", a.Temperature)
		}
	})

	t.Run("no separator after trailing whitespace", func(t *testing.T) {
		a := aggregateSegments([]Segment{{Text: "one "}, {Text: "two"}, {Text: "three"}}, 0)
		if a.Text != "one two three" {
			t.Errorf("Text = %q", a.Text)
		}
	})

	t.Run("no tokens is degenerate", func(t *testing.T) {
		a := aggregateSegments([]Segment{{Text: "x", TokenProbs: []float32{0, -1}}}, 0)
		if !math.IsInf(a.AvgLogprob, -1) {
			t.Errorf("AvgLogprob = %v, want -Inf", a.AvgLogprob)
		}
	})

	t.Run("nil segments", func(t *testing.T) {
		a := aggregateSegments(nil, 0)
		if a.Text != "" || !math.IsInf(a.AvgLogprob, -1) || a.NoSpeechProb != 0 {
			t.Errorf("aggregateSegments(nil) = %+v", a)
		}
	})
}

func TestDegenerateAttempt(t *testing.T) {
	a := degenerateAttempt(0.6)
	if !math.IsInf(a.AvgLogprob, -1) || !math.IsInf(a.Score, -1) {
		t.Errorf("degenerateAttempt() = %+v, want -Inf logprob and score", a)
	}
	if a.Temperature != 0.6 {
		t.Errorf("Temperature = %v, want 0.6", a.Temperature)
	}
}
