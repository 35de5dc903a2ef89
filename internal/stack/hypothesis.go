// Package stack implements the Pass-2 A★ stack decoder (C7): a bounded
// priority queue of partial right-to-left sentence hypotheses expanded
// backward over the word trellis with full LM context. Grounded on
// spec.md §4.7.
package stack

// Hypothesis is a partial right-to-left sentence. Expansion discovers
// words in reverse chronological order and prepends each newly found
// word to Words, so Words ends up already in ordinary left-to-right
// sentence order: the first word discovered (the utterance's last word
// in time) settles at the end of Words, and every word found afterward
// sits earlier in time and is inserted ahead of it.
type Hypothesis struct {
	Words      []int
	Frame      int
	G          float64
	H          float64
	Confidence float64
}

// F returns the priority-queue key f = g + h.
func (h *Hypothesis) F() float64 { return h.G + h.H }

// Sentence returns the attached words in left-to-right order.
func (h *Hypothesis) Sentence() []int {
	return append([]int{}, h.Words...)
}
