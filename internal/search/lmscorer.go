package search

import "github.com/example/go-recog/internal/lm"

// Scorer supplies the exact LM score applied when a token crosses a word
// boundary, and identifies transparent words (spec.md §4.5 point 4: a
// transparent word's completion does not update the LM context).
type Scorer interface {
	Forward(context, word int) float64
	IsTransparent(word int) bool
}

// NGramScorer adapts an *lm.NGram for N-gram recognition.
type NGramScorer struct {
	NGram        *lm.NGram
	Transparent  map[int]bool
}

func (s *NGramScorer) Forward(context, word int) float64 {
	return s.NGram.ForwardProb(context, word)
}

func (s *NGramScorer) IsTransparent(word int) bool {
	return s.Transparent[word]
}

// DFAScorer adapts an *lm.DFA plus a word->category lookup for grammar
// recognition. DFA-constrained recognition carries no probabilistic LM
// score, only an accept/reject decision, so Forward always returns 0 for
// an allowed transition and -Inf otherwise.
type DFAScorer struct {
	DFA           *lm.DFA
	CategoryOf    func(word int) int
	Transparent   map[int]bool
}

func (s *DFAScorer) Forward(context, word int) float64 {
	if context < 0 {
		return 0
	}
	fromCat := s.CategoryOf(context)
	toCat := s.CategoryOf(word)
	if s.DFA.Allowed(fromCat, toCat) {
		return 0
	}
	return negInf
}

func (s *DFAScorer) IsTransparent(word int) bool {
	return s.Transparent[word]
}
