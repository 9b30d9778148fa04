package similarity

import (
	"math"
	"strings"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_Identical(t *testing.T) {
	for _, s := range []string{"4", "What is 2+2?", "  padded  ", "ünïcödé", strings.Repeat("ab", 150)} {
		score, pass := Score(s, s)
		if score != 1.0 || !pass {
			t.Errorf("Score(%q, %q) = (%v, %v), want (1, true)", s, s, score, pass)
		}
	}
}

func TestScore_EmptyStrings(t *testing.T) {
	score, pass := Score("", "")
	if score != 1.0 || !pass {
		t.Errorf("Score(\"\", \"\") = (%v, %v), want (1, true)", score, pass)
	}
	score, pass = Score("anything", "")
	if score >= 1.0 || pass {
		t.Errorf("Score(non-empty, \"\") = (%v, %v), want < 1 and fail", score, pass)
	}
	score, _ = Score("", "anything")
	if score >= 1.0 {
		t.Errorf("Score(\"\", non-empty) = %v, want < 1", score)
	}
}

func TestScore_Normalization(t *testing.T) {
	score, pass := Score("  The Answer Is 4\n", "the answer is 4")
	if score != 1.0 || !pass {
		t.Errorf("got (%v, %v), want (1, true)", score, pass)
	}
	// Punctuation is not normalized away.
	score, _ = Score("4.", "4")
	if score == 1.0 {
		t.Error("punctuation should affect the score")
	}
}

func TestScore_Disjoint(t *testing.T) {
	score, pass := Score("five", "4")
	if score != 0 || pass {
		t.Errorf("Score(five, 4) = (%v, %v), want (0, false)", score, pass)
	}
}

func TestScore_ThresholdBoundary(t *testing.T) {
	// 2*15/31 ≈ 0.968
	score, pass := Score("the answer is 4", "the answer is 4.")
	if !approx(score, 30.0/31.0) || !pass {
		t.Errorf("got (%v, %v), want (%v, true)", score, pass, 30.0/31.0)
	}
	// 2*3/8 = 0.75
	score, pass = Score("abcd", "bcde")
	if !approx(score, 0.75) || pass {
		t.Errorf("got (%v, %v), want (0.75, false)", score, pass)
	}
}

func TestRatio_KnownValues(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"abcd", "bcde", 0.75},
		{"qabxcd", "abycdf", 8.0 / 12.0},
		{" abcd", "abcd abcd", 10.0 / 14.0},
		{"abc", "xyz", 0},
		{"", "abc", 0},
	}
	for _, c := range cases {
		if got := Ratio(c.a, c.b); !approx(got, c.want) {
			t.Errorf("Ratio(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"abcd", "bcde"},
		{"qabxcd", "abycdf"},
		{"the quick brown fox", "quick the fox brown"},
		{"aaab", "abbb"},
		{strings.Repeat("a b ", 80), strings.Repeat("b a ", 70) + "c"},
		{"INT-101;INT-102", "INT-102;INT-101"},
	}
	for _, p := range pairs {
		ab, _ := Score(p[0], p[1])
		ba, _ := Score(p[1], p[0])
		if ab != ba {
			t.Errorf("Score not symmetric for %q / %q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestRatio_PopularElementsStillExtend(t *testing.T) {
	long := strings.Repeat("a", 300)
	if got := Ratio(long, long); got != 1.0 {
		t.Errorf("Ratio of identical popular-only strings = %v, want 1", got)
	}
	if got := Ratio(long, long+"b"); !approx(got, 600.0/601.0) {
		t.Errorf("got %v, want %v", got, 600.0/601.0)
	}
}

func TestScore_Deterministic(t *testing.T) {
	a, b := "Kubernetes operator reconciles the CR", "the operator reconciles a Kubernetes CR"
	first, _ := Score(a, b)
	for i := 0; i < 20; i++ {
		if got, _ := Score(a, b); got != first {
			t.Fatalf("iteration %d: %v != %v", i, got, first)
		}
	}
	if first <= 0 || first >= 1 {
		t.Errorf("expected partial similarity, got %v", first)
	}
}

func TestPassed(t *testing.T) {
	if !Passed(0.9) || !Passed(1) || Passed(0.8999) {
		t.Error("Passed threshold mismatch")
	}
}
