package lexicon

import (
	"math"

	"github.com/example/go-recog/internal/lm"
)

// ComputeFactoring attaches to every node the best (maximum) unigram log
// probability reachable among the word ends in its subtree — the 1-gram
// factoring annotation spec.md §4.4 point 4 requires so a subtree's LM
// cost can be applied as soon as a token enters it, refined to the true
// N-gram once the search reaches a word-head node whose subtree is a
// single word. The tree is a DAG under prefix sharing, not strictly a
// tree, so this memoizes per node to avoid recomputing shared subtrees.
func (t *Tree) ComputeFactoring(ngram *lm.NGram) {
	computed := make(map[*Node]bool, len(t.nodes))
	var visit func(n *Node) float64
	visit = func(n *Node) float64 {
		if computed[n] {
			return n.Factoring
		}
		best := math.Inf(-1)
		if n.IsWordEnd && n.WordID >= 0 && n.WordID < len(ngram.Unigram) {
			best = ngram.Unigram[n.WordID]
		}
		for _, e := range n.Children {
			if c := visit(e.To); c > best {
				best = c
			}
		}
		n.Factoring = best
		computed[n] = true
		return best
	}
	visit(t.Root)
}

// IsSingleWordSubtree reports whether n's subtree contains exactly one
// word end, the condition under which the true N-gram probability (not
// just 1-gram factoring) can be applied at n per spec.md §4.4 point 4.
func (t *Tree) IsSingleWordSubtree(n *Node) (wordID int, ok bool) {
	count := 0
	found := -1
	var visit func(n *Node)
	seen := make(map[*Node]bool)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if n.IsWordEnd {
			count++
			found = n.WordID
		}
		for _, e := range n.Children {
			visit(e.To)
		}
	}
	visit(n)
	if count == 1 {
		return found, true
	}
	return -1, false
}
