package transcribe

import (
	"strings"
	"unicode"
)

// ErrorRate is a word-level edit distance between a reference transcript and
// a recognizer hypothesis.
type ErrorRate struct {
	Rate          float64 // (Substitutions+Insertions+Deletions) / RefWords
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// edits is one cell of the alignment table.
type edits struct {
	subs, ins, dels int
}

func (e edits) cost() int { return e.subs + e.ins + e.dels }

// WordErrorRate aligns hypothesis against reference after lowercasing,
// stripping punctuation and collapsing whitespace. An empty reference
// yields the zero ErrorRate.
func WordErrorRate(reference, hypothesis string) ErrorRate {
	ref := NormalizeTranscript(reference)
	hyp := NormalizeTranscript(hypothesis)
	if len(ref) == 0 {
		return ErrorRate{}
	}

	// Two rolling rows; each cell carries its operation counts so no
	// backtrace is needed.
	prev := make([]edits, len(hyp)+1)
	cur := make([]edits, len(hyp)+1)
	for j := range prev {
		prev[j] = edits{ins: j}
	}
	for i := 1; i <= len(ref); i++ {
		cur[0] = edits{dels: i}
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			sub, del, ins := prev[j-1], prev[j], cur[j-1]
			sub.subs++
			del.dels++
			ins.ins++
			best := sub
			if del.cost() < best.cost() {
				best = del
			}
			if ins.cost() < best.cost() {
				best = ins
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	e := prev[len(hyp)]
	return ErrorRate{
		Rate:          float64(e.cost()) / float64(len(ref)),
		Substitutions: e.subs,
		Insertions:    e.ins,
		Deletions:     e.dels,
		RefWords:      len(ref),
	}
}

// NormalizeTranscript lowercases text, strips punctuation, and splits it
// into words.
func NormalizeTranscript(s string) []string {
	return strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s))
}
