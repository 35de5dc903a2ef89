// Package engine wires the ten components into the top-level recognizer
// driver: a fragment-at-a-time feed loop runs Pass 1 and the GMM
// verifier together, a short-pause segmenter decides when to close a
// segment, and Pass 2 plus forced alignment run on the closed span.
// There is no global recognizer singleton and no callback table — a
// caller supplies a Sink and receives tagged Events, per spec.md §9's
// design note. Grounded on `recogmain.c`'s top-level driver loop.
package engine

import (
	"fmt"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/dict"
	"github.com/example/go-recog/internal/lexicon"
	"github.com/example/go-recog/internal/lm"
	"github.com/example/go-recog/internal/verify"
)

// Model is the read-only, shared recognition model: spec.md §5's
// "shared-resource policy" calls out the lexicon tree, AM, LM, and
// dictionary as read-only during a segment, so a Model is built once
// and handed to as many concurrent Recog instances as needed.
type Model struct {
	HMM  *acmodel.HMMSet
	Dict *dict.Dictionary

	// Tree is the single global tree used in N-gram mode. Categories
	// holds one tree per DFA category, used instead in grammar mode;
	// exactly one of the two is populated.
	Tree       *lexicon.Tree
	Categories map[int]*lexicon.Tree

	NGram      *lm.NGram
	DFA        *lm.DFA
	Grammar    *lm.Manager
	CategoryOf func(wordID int) int // nil in N-gram mode

	Transparent      map[int]bool
	ShortPauseWordID int

	GMMs []verify.GMM

	prons [][]*acmodel.PhysicalHMM // wordID -> resolved pronunciation
}

// NewModel resolves every dictionary entry's pronunciation against hmm
// and returns a Model with no tree or LM attached yet; callers build the
// tree (BuildModelTree or BuildModelCategoryTrees) and assign NGram/DFA
// separately once those are loaded.
func NewModel(hmm *acmodel.HMMSet, d *dict.Dictionary) (*Model, error) {
	prons := make([][]*acmodel.PhysicalHMM, len(d.Entries))
	transparent := make(map[int]bool)
	for i, e := range d.Entries {
		p, err := e.Resolve(hmm)
		if err != nil {
			return nil, fmt.Errorf("engine: resolving dictionary entry %d (%q): %w", i, e.Name, err)
		}
		prons[i] = p
		if e.Transparent {
			transparent[i] = true
		}
	}
	return &Model{HMM: hmm, Dict: d, Transparent: transparent, prons: prons, ShortPauseWordID: -1}, nil
}

// Pron returns wordID's resolved pronunciation.
func (m *Model) Pron(wordID int) []*acmodel.PhysicalHMM { return m.prons[wordID] }

func (m *Model) wordPron() []lexicon.WordPron {
	out := make([]lexicon.WordPron, len(m.prons))
	for i, p := range m.prons {
		out[i] = lexicon.WordPron{WordID: i, HMMs: p}
	}
	return out
}

// BuildTree builds the single global N-gram lexicon tree over every
// dictionary entry.
func (m *Model) BuildTree() error {
	t, err := lexicon.BuildTree(m.wordPron())
	if err != nil {
		return err
	}
	m.Tree = t
	return nil
}

// BuildCategoryTrees builds one lexicon tree per DFA category.
func (m *Model) BuildCategoryTrees() error {
	if m.DFA == nil {
		return fmt.Errorf("engine: BuildCategoryTrees requires a DFA grammar")
	}
	trees, err := lexicon.BuildCategoryTrees(m.DFA.Categories, m.wordPron())
	if err != nil {
		return err
	}
	m.Categories = trees
	return nil
}
