package engine

import (
	"math"

	"github.com/example/go-recog/internal/lm"
	"github.com/example/go-recog/internal/search"
	"github.com/example/go-recog/internal/stack"
)

var negInf = math.Inf(-1)

// ngramBackward adapts an lm.NGram to stack.Scorer for Pass 2; Pass 1's
// forward side already has search.NGramScorer, reused directly below.
type ngramBackward struct{ ngram *lm.NGram }

func (s *ngramBackward) Backward(word, next1, next2 int) float64 {
	if next1 < 0 {
		// No right context yet: word is the sentence-final word in this
		// reverse expansion, so score it by its unigram alone (mirrors
		// search.NGramScorer.Forward's context<0 start-of-sentence case).
		return s.ngram.Unigram[word]
	}
	return s.ngram.BackwardProb(word, next1, next2)
}

// dfaBackward adapts an lm.DFA to stack.Scorer: Pass 2 expands backward,
// so the category check runs word -> next1 instead of context -> word.
type dfaBackward struct {
	dfa        *lm.DFA
	categoryOf func(int) int
}

func (s *dfaBackward) Backward(word, next1, next2 int) float64 {
	if next1 < 0 {
		return 0
	}
	if s.dfa.Allowed(s.categoryOf(word), s.categoryOf(next1)) {
		return 0
	}
	return negInf
}

// buildScorers returns the Pass-1 forward scorer, the Pass-2 backward
// scorer, and the candidate-enumeration function for m's active grammar
// mode (N-gram if m.NGram is set, DFA otherwise).
func buildScorers(m *Model) (search.Scorer, stack.Scorer, stack.Candidates) {
	if m.DFA != nil {
		catWords := make(map[int][]int)
		for wid := 0; wid < len(m.Dict.Entries); wid++ {
			c := m.CategoryOf(wid)
			catWords[c] = append(catWords[c], wid)
		}
		fwd := &search.DFAScorer{DFA: m.DFA, CategoryOf: m.CategoryOf, Transparent: m.Transparent}
		bwd := &dfaBackward{dfa: m.DFA, categoryOf: m.CategoryOf}
		cands := func(next1, next2 int) []int {
			if next1 < 0 {
				var all []int
				for _, ws := range catWords {
					all = append(all, ws...)
				}
				return all
			}
			toCategory := m.CategoryOf(next1)
			var out []int
			for cat, ws := range catWords {
				if m.DFA.Allowed(cat, toCategory) {
					out = append(out, ws...)
				}
			}
			return out
		}
		return fwd, bwd, cands
	}

	fwd := &search.NGramScorer{NGram: m.NGram, Transparent: m.Transparent}
	bwd := &ngramBackward{ngram: m.NGram}
	cands := func(next1, next2 int) []int {
		out := make([]int, len(m.Dict.Entries))
		for i := range out {
			out[i] = i
		}
		return out
	}
	return fwd, bwd, cands
}
