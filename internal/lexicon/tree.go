// Package lexicon builds the prefix-shared pronunciation tree (C4): one
// global tree for N-gram recognition, or one tree per DFA category for
// grammar-based recognition, with 1-gram factoring annotations and
// cross-word triphone approximation at word boundaries.
package lexicon

import (
	"fmt"

	"github.com/example/go-recog/internal/acmodel"
)

// Edge is an arc of the tree, carrying the transition log-probability
// used when a Pass-1 token advances across it.
type Edge struct {
	To      *Node
	LogProb float64
}

// Node is one tree state: emitting (State set, scored against a feature
// vector each frame) or a non-emitting junction joining a phone or word
// boundary. IsWordEnd/WordID are only meaningful at word-terminal nodes;
// spec.md §4.4 requires that no two words share a terminal node, enforced
// by AddWord.
type Node struct {
	ID        int
	State     *acmodel.State
	SelfLoop  float64 // self-transition log-probability for an emitting node; 0 for a junction
	Children  []*Edge
	Factoring float64
	IsWordEnd bool
	WordID    int
}

type shareKey struct {
	parent *Node
	state  *acmodel.State
}

// Tree is a prefix-shared pronunciation tree rooted at Root.
type Tree struct {
	Root   *Node
	nodes  []*Node
	shared map[shareKey]*Node
}

// NewTree returns an empty tree with just a root junction node.
func NewTree() *Tree {
	t := &Tree{shared: make(map[shareKey]*Node)}
	t.Root = t.newNode(nil)
	return t
}

func (t *Tree) newNode(state *acmodel.State) *Node {
	n := &Node{ID: len(t.nodes), State: state, WordID: -1}
	t.nodes = append(t.nodes, n)
	return n
}

// NodeCount returns the number of distinct nodes in the tree.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// NodeByID returns the node with the given id, or nil if out of range.
func (t *Tree) NodeByID(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// AddWord extends the tree with a word's pronunciation, sharing as much
// of an existing prefix as possible. hmms is the word's phone sequence
// already resolved to physical HMMs (via dict.Entry.Resolve).
//
// Transition log-probabilities are approximated from each physical HMM's
// own transition matrix, indexing row i into state i+1 for the edge
// entering the i'th state (the phone-entry edge uses row 0). This departs
// from HTK's full entry/exit non-emitting-state bookkeeping, which needs
// a per-context transition matrix per boundary; a tree edge here is
// shared across every word that happens to reach the same (parent, state)
// pair, so it can only carry one edge weight, taken from whichever word
// first created it.
func (t *Tree) AddWord(wordID int, hmms []*acmodel.PhysicalHMM) error {
	if len(hmms) == 0 {
		return fmt.Errorf("lexicon: word %d has no phones", wordID)
	}
	cur := t.Root
	for _, p := range hmms {
		if len(p.States) == 0 {
			return fmt.Errorf("lexicon: physical HMM %q has no states", p.Name)
		}
		for i, st := range p.States {
			key := shareKey{parent: cur, state: st}
			child, ok := t.shared[key]
			if !ok {
				child = t.newNode(st)
				t.shared[key] = child
				logProb := 0.0
				if p.Trans != nil && i < p.Trans.NumStates-1 && i+1 < len(p.Trans.A[i]) {
					logProb = p.Trans.A[i][i+1]
				}
				if p.Trans != nil && i < len(p.Trans.A) && i < len(p.Trans.A[i]) {
					child.SelfLoop = p.Trans.A[i][i]
				}
				cur.Children = append(cur.Children, &Edge{To: child, LogProb: logProb})
			}
			cur = child
		}
	}
	if cur.IsWordEnd {
		return fmt.Errorf("lexicon: word %d shares its terminal state with word %d; every word end must occupy a distinct state", wordID, cur.WordID)
	}
	cur.IsWordEnd = true
	cur.WordID = wordID
	return nil
}
