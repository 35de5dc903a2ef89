package lm

import (
	"math"
	"testing"
)

func TestNGram_ForwardProb_ExplicitBigram(t *testing.T) {
	n := NewNGram(5)
	n.SetUnigram(2, -3.0)
	n.SetBigram(1, 2, -0.5)
	if got := n.ForwardProb(1, 2); got != -0.5 {
		t.Errorf("ForwardProb = %v; want -0.5", got)
	}
}

func TestNGram_ForwardProb_FallsBackToUnigram(t *testing.T) {
	n := NewNGram(5)
	n.SetUnigram(2, -3.0)
	n.SetBigramBackoff(1, -0.2)
	if got := n.ForwardProb(1, 2); got != -3.2 {
		t.Errorf("ForwardProb = %v; want -3.2", got)
	}
}

func TestNGram_UnsetUnigramIsLogZero(t *testing.T) {
	n := NewNGram(3)
	if !math.IsInf(n.Unigram[0], -1) {
		t.Error("expected an unset unigram to default to -Inf")
	}
}

func TestNGram_BackwardProb_ExplicitTrigram(t *testing.T) {
	n := NewNGram(5)
	n.SetTrigram(0, 1, 2, -1.1)
	if got := n.BackwardProb(0, 1, 2); got != -1.1 {
		t.Errorf("BackwardProb = %v; want -1.1", got)
	}
}

func TestNGram_BackwardProb_FallsBackThroughBigram(t *testing.T) {
	n := NewNGram(5)
	n.SetUnigram(1, -2.0)
	n.SetBigram(0, 1, -0.7)
	n.SetTrigramBackoff(0, 1, -0.1)
	if got := n.BackwardProb(0, 1, 2); math.Abs(got-(-0.8)) > 1e-9 {
		t.Errorf("BackwardProb = %v; want -0.8", got)
	}
}

func TestNewUniformNGram_EveryWordEquallyLikely(t *testing.T) {
	n := NewUniformNGram(4)
	want := -math.Log(4)
	for w := 0; w < 4; w++ {
		if n.Unigram[w] != want {
			t.Errorf("Unigram[%d] = %v; want %v", w, n.Unigram[w], want)
		}
	}
	if got := n.ForwardProb(2, 1); got != want {
		t.Errorf("ForwardProb falls back to unigram = %v; want %v", got, want)
	}
	if got := n.BackwardProb(1, 2, 3); got != want {
		t.Errorf("BackwardProb falls back to unigram = %v; want %v", got, want)
	}
}

func TestNewUniformNGram_ZeroVocab(t *testing.T) {
	n := NewUniformNGram(0)
	if len(n.Unigram) != 0 {
		t.Errorf("expected no unigram entries for a zero vocabulary, got %d", len(n.Unigram))
	}
}
