package lexicon

import (
	"fmt"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/lm"
)

// WordPron is one word's id paired with its pronunciation already
// resolved to physical HMMs, the input BuildTree/BuildCategoryTrees need.
type WordPron struct {
	WordID int
	HMMs   []*acmodel.PhysicalHMM
}

// BuildTree builds a single prefix-shared tree over words — the "one
// global tree (for N-gram)" build mode of spec.md §4.4 point 4.
func BuildTree(words []WordPron) (*Tree, error) {
	t := NewTree()
	for _, w := range words {
		if err := t.AddWord(w.WordID, w.HMMs); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BuildCategoryTrees builds one tree per DFA category, each containing
// only the words belonging to that category — the "per-category trees
// (for DFA grammars)" build mode of spec.md §4.4 point 3.
func BuildCategoryTrees(categories []*lm.Category, words []WordPron) (map[int]*Tree, error) {
	byID := make(map[int]WordPron, len(words))
	for _, w := range words {
		byID[w.WordID] = w
	}

	out := make(map[int]*Tree, len(categories))
	for _, c := range categories {
		var sub []WordPron
		for _, wid := range c.Words {
			w, ok := byID[wid]
			if !ok {
				return nil, fmt.Errorf("lexicon: category %d references unknown word id %d", c.ID, wid)
			}
			sub = append(sub, w)
		}
		tree, err := BuildTree(sub)
		if err != nil {
			return nil, fmt.Errorf("lexicon: category %d: %w", c.ID, err)
		}
		out[c.ID] = tree
	}
	return out, nil
}
