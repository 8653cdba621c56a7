package matching

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{a: "real madrid", b: "real madrid", want: 1},
		{a: "barcelona", b: "barcelone", want: 1 - 1.0/9},
		{a: "bayern munchen", b: "bayern", want: 2.0 / 3},
		{a: "manchester united", b: "manchester city", want: 0.5},
		{a: "bodo glimt", b: "bodoglimt", want: 0.9},
		{a: "arsenal", b: "chelsea", want: 0},
		{a: "", b: "chelsea", want: 0},
	}

	for _, tc := range tests {
		if got := Similarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Similarity(%q, %q): want %.4f got %.4f", tc.a, tc.b, tc.want, got)
		}
		if got, back := Similarity(tc.a, tc.b), Similarity(tc.b, tc.a); math.Abs(got-back) > 1e-9 {
			t.Fatalf("Similarity not symmetric for %q/%q: %.4f vs %.4f", tc.a, tc.b, got, back)
		}
	}
}

func TestEditRatio(t *testing.T) {
	t.Parallel()

	if got := EditRatio("kitten", "sitting"); math.Abs(got-(1-3.0/7)) > 1e-9 {
		t.Fatalf("unexpected edit ratio: %.4f", got)
	}
	if got := EditRatio("", ""); got != 1 {
		t.Fatalf("expected empty strings to be identical, got %.4f", got)
	}
	if got := EditRatio("münchen", "munchen"); math.Abs(got-(1-1.0/7)) > 1e-9 {
		t.Fatalf("expected rune-based distance, got %.4f", got)
	}
}

func TestTokenRatio_ShortTokensCountRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{a: "цск", b: "цсл", want: 0},
		{a: "ΑΕΚ", b: "ΑΕΛ", want: 0},
		{a: "цска", b: "цска", want: 1},
	}
	for _, tc := range tests {
		if got := tokenRatio(tc.a, tc.b); got != tc.want {
			t.Fatalf("tokenRatio(%q, %q): want %v got %v", tc.a, tc.b, tc.want, got)
		}
	}
	if got := tokenRatio("спартак", "спартах"); got < tokenMatchRatio {
		t.Fatalf("expected long Cyrillic tokens to match fuzzily, got %v", got)
	}
}
