// Package lm holds the language-model side of the decoder: N-gram
// tables (forward bigram for Pass 1, backward trigram for Pass 2), a DFA
// grammar representation for category-based recognition, and the
// multi-grammar manager that composes several grammars into one global
// grammar with runtime add/delete/activate/deactivate support.
package lm

import "math"

// NGram holds a word-id indexed N-gram: a unigram table always present,
// an optional forward bigram (used during Pass 1, where only left
// context is available) and an optional backward trigram (used during
// Pass 2's right-to-left rescoring, where two words of right context are
// available instead). Missing higher-order entries fall back through a
// per-context backoff weight, the standard Katz/Good-Turing back-off
// arrangement HTK/Julius N-gram files use.
type NGram struct {
	VocabSize int
	Unigram   []float64 // log-prob by word id

	bigram        map[bigramKey]float64
	bigramBackoff map[int]float64 // keyed by prev word id

	trigram        map[trigramKey]float64
	trigramBackoff map[bigramKey]float64 // keyed by (word, next1)
}

type bigramKey struct{ a, b int }
type trigramKey struct{ a, b, c int }

// NewNGram allocates an N-gram table for a vocabulary of vocabSize words,
// every unigram initialised to log-zero until set.
func NewNGram(vocabSize int) *NGram {
	u := make([]float64, vocabSize)
	for i := range u {
		u[i] = math.Inf(-1)
	}
	return &NGram{
		VocabSize:      vocabSize,
		Unigram:        u,
		bigram:         make(map[bigramKey]float64),
		bigramBackoff:  make(map[int]float64),
		trigram:        make(map[trigramKey]float64),
		trigramBackoff: make(map[bigramKey]float64),
	}
}

func (n *NGram) SetUnigram(word int, logProb float64) { n.Unigram[word] = logProb }

// NewUniformNGram builds an N-gram with every word equally likely and no
// bigram/trigram entries, the flat word list spec.md's data model names as
// the language model for isolated-word recognition: every word falls back
// to its unigram at every context, since no bigram/trigram ever matches.
func NewUniformNGram(vocabSize int) *NGram {
	n := NewNGram(vocabSize)
	if vocabSize == 0 {
		return n
	}
	u := -math.Log(float64(vocabSize))
	for i := range n.Unigram {
		n.Unigram[i] = u
	}
	return n
}

func (n *NGram) SetBigram(prev, word int, logProb float64) {
	n.bigram[bigramKey{prev, word}] = logProb
}

func (n *NGram) SetBigramBackoff(prev int, weight float64) { n.bigramBackoff[prev] = weight }

func (n *NGram) SetTrigram(word, next1, next2 int, logProb float64) {
	n.trigram[trigramKey{word, next1, next2}] = logProb
}

func (n *NGram) SetTrigramBackoff(word, next1 int, weight float64) {
	n.trigramBackoff[bigramKey{word, next1}] = weight
}

// ForwardProb returns the Pass-1 forward language-model cost of word
// given its immediate predecessor: the explicit bigram if present,
// otherwise the predecessor's backoff weight plus the unigram.
func (n *NGram) ForwardProb(prev, word int) float64 {
	if p, ok := n.bigram[bigramKey{prev, word}]; ok {
		return p
	}
	backoff := n.bigramBackoff[prev] // zero value if absent, i.e. no extra penalty
	return backoff + n.Unigram[word]
}

// BackwardProb returns the Pass-2 backward language-model cost of word
// given the two words that follow it in the (reverse-built) hypothesis:
// the explicit trigram if present, else backoff through the bigram.
func (n *NGram) BackwardProb(word, next1, next2 int) float64 {
	if p, ok := n.trigram[trigramKey{word, next1, next2}]; ok {
		return p
	}
	backoff := n.trigramBackoff[bigramKey{word, next1}]
	return backoff + n.ForwardProb(word, next1)
}
