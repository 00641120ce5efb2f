package transcribe

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Attempt is the scored outcome of one recognition run.
type Attempt struct {
	Text         string
	AvgLogprob   float64 // mean ln(p) over tokens; -Inf when no token had p > 0
	NoSpeechProb float64
	Score        float64
	Temperature  float32
}

// degenerateAttempt is what a failed or token-less attempt reports.
func degenerateAttempt(temperature float32) Attempt {
	a := Attempt{AvgLogprob: math.Inf(-1), Temperature: temperature}
	a.Score = Score(a.AvgLogprob, a.NoSpeechProb)
	return a
}

// Score ranks an attempt: the average log-probability weighted by the
// engine's confidence that the audio is speech. Higher is better.
func Score(avgLogprob, noSpeechProb float64) float64 {
	return avgLogprob * (1 - noSpeechProb)
}

// SelectBest returns the attempt with the highest score. Ties go to the
// earliest attempt. A NaN score neither beats nor loses to anything, so a
// NaN first attempt is kept and a later NaN is skipped. ok is false only
// for an empty slice.
func SelectBest(attempts []Attempt) (best Attempt, ok bool) {
	if len(attempts) == 0 {
		return Attempt{}, false
	}
	best = attempts[0]
	for _, a := range attempts[1:] {
		if scoreBeats(a.Score, best.Score) {
			best = a
		}
	}
	return best, true
}

// scoreBeats reports b < a. Every comparison involving NaN is false.
func scoreBeats(a, b float64) bool {
	return b < a
}

// aggregateSegments folds engine segments into a scored attempt.
func aggregateSegments(segments []Segment, temperature float32) Attempt {
	a := Attempt{AvgLogprob: math.Inf(-1), Temperature: temperature}

	var (
		text    strings.Builder
		sumLogp float64
		tokens  int
	)
	for _, seg := range segments {
		if seg.Text != "" {
			if text.Len() > 0 && !endsInSpace(text.String()) {
				text.WriteByte(' ')
			}
			text.WriteString(seg.Text)
		}
		a.NoSpeechProb = max(a.NoSpeechProb, seg.NoSpeechProb)
		for _, p := range seg.TokenProbs {
			if p > 0 {
				sumLogp += math.Log(float64(p))
				tokens++
			}
		}
	}

	a.Text = text.String()
	if tokens > 0 {
		a.AvgLogprob = sumLogp / float64(tokens)
	}
	a.Score = Score(a.AvgLogprob, a.NoSpeechProb)
	return a
}

func endsInSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}
