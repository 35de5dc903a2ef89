package search

import (
	"testing"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/gauss"
	"github.com/example/go-recog/internal/lexicon"
	"github.com/example/go-recog/internal/lm"
)

func density(mean []float64) *acmodel.Density {
	v := make([]float64, len(mean))
	for i := range v {
		v[i] = 1.0
	}
	return &acmodel.Density{Mean: mean, Var: &acmodel.Variance{Vec: v}, GConst: 0}
}

func emittingState(name string, mean []float64) *acmodel.State {
	return &acmodel.State{Name: name, D: []*acmodel.Density{density(mean)}, Weight: []float64{0}}
}

func flatTransition(name string, n int) *acmodel.Transition {
	tr := &acmodel.Transition{Name: name, NumStates: n}
	tr.A = make([][]float64, n)
	for i := range tr.A {
		tr.A[i] = make([]float64, n)
		if i+1 < n {
			tr.A[i][i+1] = -0.1
		}
	}
	return tr
}

func wordHMM(word string, means [][]float64) *acmodel.PhysicalHMM {
	states := make([]*acmodel.State, len(means))
	for i, m := range means {
		states[i] = emittingState(word, m)
	}
	return &acmodel.PhysicalHMM{Name: word, States: states, Trans: flatTransition(word+"-tr", len(means)+2)}
}

func buildTwoWordTree(t *testing.T) *lexicon.Tree {
	t.Helper()
	tree := lexicon.NewTree()
	if err := tree.AddWord(0, []*acmodel.PhysicalHMM{wordHMM("lo", [][]float64{{0, 0}})}); err != nil {
		t.Fatalf("AddWord(0): %v", err)
	}
	if err := tree.AddWord(1, []*acmodel.PhysicalHMM{wordHMM("hi", [][]float64{{10, 10}})}); err != nil {
		t.Fatalf("AddWord(1): %v", err)
	}
	ngram := lm.NewNGram(2)
	ngram.SetUnigram(0, -1.0)
	ngram.SetUnigram(1, -1.0)
	tree.ComputeFactoring(ngram)
	return tree
}

func TestSearcher_PrefersAcousticallyCloserWord(t *testing.T) {
	tree := buildTwoWordTree(t)
	ngram := lm.NewNGram(2)
	ngram.SetUnigram(0, -1.0)
	ngram.SetUnigram(1, -1.0)
	scorer := &NGramScorer{NGram: ngram, Transparent: map[int]bool{}}

	s := New(tree, scorer, Config{BeamWidth: 10, GaussMode: gauss.ModeNone, GaussTopK: 4})
	if s.Phase() != PhaseRunning {
		t.Fatalf("Phase() = %v; want running", s.Phase())
	}

	s.ProcessFrame([]float64{0, 0})
	if s.LiveCount() == 0 {
		t.Fatal("expected live tokens after first frame")
	}

	s.Trellis().Finalize()
	atomsAt0 := s.Trellis().AtomsInRange(0, 0)
	var loScore, hiScore float64
	var gotLo, gotHi bool
	for _, a := range atomsAt0 {
		if a.WordID == 0 {
			gotLo, loScore = true, a.Score
		}
		if a.WordID == 1 {
			gotHi, hiScore = true, a.Score
		}
	}
	if !gotLo || !gotHi {
		t.Fatalf("expected word-end atoms for both single-state words at frame 0, got lo=%v hi=%v", gotLo, gotHi)
	}
	if loScore <= hiScore {
		t.Errorf("score(lo)=%v should exceed score(hi)=%v: the feature vector [0,0] sits on lo's mean", loScore, hiScore)
	}
}

func TestSearcher_FailsWhenBeamEmpties(t *testing.T) {
	tree := lexicon.NewTree()
	ngram := lm.NewNGram(1)
	scorer := &NGramScorer{NGram: ngram, Transparent: map[int]bool{}}
	s := New(tree, scorer, Config{BeamWidth: 1, GaussMode: gauss.ModeNone, GaussTopK: 1})

	s.ProcessFrame([]float64{0})
	if s.Phase() != PhaseFailed {
		t.Errorf("Phase() = %v; want failed (empty tree has no children to survive into)", s.Phase())
	}
}

func TestSearcher_EndAndSegmentTransitions(t *testing.T) {
	tree := buildTwoWordTree(t)
	ngram := lm.NewNGram(2)
	scorer := &NGramScorer{NGram: ngram, Transparent: map[int]bool{}}
	s := New(tree, scorer, Config{BeamWidth: 10, GaussMode: gauss.ModeNone, GaussTopK: 4})

	s.End()
	if s.Phase() != PhaseEnded {
		t.Errorf("Phase() after End = %v; want ended", s.Phase())
	}

	s2 := New(tree, scorer, Config{BeamWidth: 10, GaussMode: gauss.ModeNone, GaussTopK: 4})
	s2.Segment()
	if s2.Phase() != PhaseSegmented {
		t.Errorf("Phase() after Segment = %v; want segmented", s2.Phase())
	}
}

func TestDFAScorer_RejectsDisallowedTransition(t *testing.T) {
	dfa := lm.NewDFA()
	dfa.AddCategory(nil)
	dfa.AddCategory(nil)
	dfa.BuildCategoryPairTable()
	scorer := &DFAScorer{DFA: dfa, CategoryOf: func(w int) int { return w }}
	if got := scorer.Forward(0, 1); got != negInf {
		t.Errorf("Forward(0,1) = %v; want -Inf (no pair registered)", got)
	}
}
