package lexicon

import (
	"math"
	"testing"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/lm"
)

func mkState(name string) *acmodel.State {
	return &acmodel.State{Name: name}
}

func mkHMM(name string, states ...*acmodel.State) *acmodel.PhysicalHMM {
	n := len(states)
	tr := &Transition{}
	_ = tr
	trans := &acmodel.Transition{Name: name + "-tr", NumStates: n + 2}
	trans.A = make([][]float64, trans.NumStates)
	for i := range trans.A {
		trans.A[i] = make([]float64, trans.NumStates)
		if i+1 < trans.NumStates {
			trans.A[i][i+1] = -0.1
		}
	}
	return &acmodel.PhysicalHMM{Name: name, States: states, Trans: trans}
}

// Transition is a tiny placeholder type used only to keep the helper
// above self-documenting; it has no effect on the tree itself.
type Transition struct{}

func TestAddWord_SharesCommonPrefix(t *testing.T) {
	k := mkState("k")
	a := mkState("a")
	t1 := mkState("t")
	d1 := mkState("d")

	tr := NewTree()
	if err := tr.AddWord(0, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("t", t1)}); err != nil {
		t.Fatalf("AddWord(cat): %v", err)
	}
	nodesAfterFirst := tr.NodeCount()

	if err := tr.AddWord(1, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("d", d1)}); err != nil {
		t.Fatalf("AddWord(cad): %v", err)
	}
	// "ca[t/d]" share the k,a prefix; only the final state differs.
	if tr.NodeCount() != nodesAfterFirst+1 {
		t.Errorf("NodeCount after second word = %d; want %d (one new leaf)", tr.NodeCount(), nodesAfterFirst+1)
	}
}

func TestAddWord_RejectsSharedTerminal(t *testing.T) {
	a := mkState("a")
	tr := NewTree()
	if err := tr.AddWord(0, []*acmodel.PhysicalHMM{mkHMM("a", a)}); err != nil {
		t.Fatalf("AddWord: %v", err)
	}
	if err := tr.AddWord(1, []*acmodel.PhysicalHMM{mkHMM("a", a)}); err == nil {
		t.Error("expected an error when two words collapse to the same terminal node")
	}
}

func TestAddWord_NoPhones(t *testing.T) {
	tr := NewTree()
	if err := tr.AddWord(0, nil); err == nil {
		t.Error("expected an error adding a word with no phones")
	}
}

func TestComputeFactoring_PicksBestUnigramInSubtree(t *testing.T) {
	k, a, t1, d1 := mkState("k"), mkState("a"), mkState("t"), mkState("d")
	tr := NewTree()
	tr.AddWord(0, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("t", t1)}) // "cat"
	tr.AddWord(1, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("d", d1)}) // "cad"

	ngram := lm.NewNGram(2)
	ngram.SetUnigram(0, -5.0)
	ngram.SetUnigram(1, -1.0)
	tr.ComputeFactoring(ngram)

	if math.Abs(tr.Root.Factoring-(-1.0)) > 1e-9 {
		t.Errorf("root factoring = %v; want -1.0 (best of the two words)", tr.Root.Factoring)
	}
}

func TestIsSingleWordSubtree(t *testing.T) {
	k, a, t1, d1 := mkState("k"), mkState("a"), mkState("t"), mkState("d")
	tr := NewTree()
	tr.AddWord(0, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("t", t1)})
	tr.AddWord(1, []*acmodel.PhysicalHMM{mkHMM("k", k), mkHMM("a", a), mkHMM("d", d1)})

	if _, ok := tr.IsSingleWordSubtree(tr.Root); ok {
		t.Error("root subtree has two words; should not report single-word")
	}
	// Find the leaf for word 0 and check it reports itself as single-word.
	var leaf *Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsWordEnd && n.WordID == 0 {
			leaf = n
		}
		for _, e := range n.Children {
			walk(e.To)
		}
	}
	walk(tr.Root)
	if leaf == nil {
		t.Fatal("could not find leaf for word 0")
	}
	id, ok := tr.IsSingleWordSubtree(leaf)
	if !ok || id != 0 {
		t.Errorf("IsSingleWordSubtree(leaf) = (%d,%v); want (0,true)", id, ok)
	}
}
