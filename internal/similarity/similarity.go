// Package similarity scores a produced answer against an expected answer.
//
// The score is the sequence-alignment ratio 2*M/T, where M is the number of
// characters in the matching blocks found by recursively taking the longest
// common contiguous block (the difflib SequenceMatcher algorithm) and T is the
// combined length of both strings. Inputs are trimmed and lowercased first.
package similarity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Threshold is the minimum score that counts as a pass.
const Threshold = 0.9

// Score normalizes both strings and returns their similarity ratio in [0, 1]
// together with the pass flag (score >= Threshold).
func Score(actual, expected string) (float64, bool) {
	r := Ratio(normalize(actual), normalize(expected))
	return r, Passed(r)
}

// Passed reports whether score clears Threshold.
func Passed(score float64) bool {
	return score >= Threshold
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Ratio returns the matching-block ratio of a and b without normalization.
// Two empty strings are identical (1.0).
//
// The block matcher is asymmetric in rare tie-break and popularity cases, so
// the pair is ordered canonically first; Ratio(a, b) always equals Ratio(b, a).
func Ratio(a, b string) float64 {
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// runes splits s into one element per character for the line-oriented matcher.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
