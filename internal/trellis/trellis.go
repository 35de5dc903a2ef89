// Package trellis implements the word trellis (C6): the append-only,
// time-indexed store of Pass-1 word ends that Pass 2 searches over
// backwards. Grounded on spec.md §4.6 and the trellis-atom shape from
// §3's "Word trellis (C6)" data-model entry.
package trellis

import "sort"

// Atom is one surviving word end: a word hypothesis spanning [Begin, End]
// with a back-pointer to the previous atom on the same path.
type Atom struct {
	ID       int
	WordID   int
	Begin    int
	End      int
	Prev     int // id of the previous trellis-atom, or -1 at utterance start
	Score    float64
	LMScore  float64
}

// Trellis is the append-only store built during Pass 1 and finalised
// once before Pass 2 reads it.
type Trellis struct {
	atoms     []*Atom
	byEnd     map[int][]*Atom // populated by Finalize; sorted by WordID within each bucket
	finalized bool
}

// New returns an empty trellis.
func New() *Trellis {
	return &Trellis{byEnd: make(map[int][]*Atom)}
}

// Add appends a new atom and returns it, assigning it the next id. Add
// must not be called after Finalize.
func (t *Trellis) Add(wordID, begin, end, prev int, score, lmScore float64) *Atom {
	if t.finalized {
		panic("trellis: Add called after Finalize")
	}
	a := &Atom{ID: len(t.atoms), WordID: wordID, Begin: begin, End: end, Prev: prev, Score: score, LMScore: lmScore}
	t.atoms = append(t.atoms, a)
	return a
}

// Len reports how many atoms have been added.
func (t *Trellis) Len() int { return len(t.atoms) }

// Atom returns the atom with the given id.
func (t *Trellis) Atom(id int) *Atom {
	if id < 0 || id >= len(t.atoms) {
		return nil
	}
	return t.atoms[id]
}

// Finalize buckets atoms by end frame and sorts each bucket by word id,
// enabling AtomAt's logarithmic lookup. Finalize may be called only once;
// further Add calls are rejected afterward.
func (t *Trellis) Finalize() {
	if t.finalized {
		return
	}
	for _, a := range t.atoms {
		t.byEnd[a.End] = append(t.byEnd[a.End], a)
	}
	for _, bucket := range t.byEnd {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].WordID < bucket[j].WordID })
	}
	t.finalized = true
}

// AtomAt looks up the atom ending at frame t for the given word id, or
// nil if none exists. Finalize must have been called first.
func (t *Trellis) AtomAt(frame, wordID int) *Atom {
	bucket := t.byEnd[frame]
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].WordID >= wordID })
	if i < len(bucket) && bucket[i].WordID == wordID {
		return bucket[i]
	}
	return nil
}

// AtomsInRange returns every atom ending within [from, to] inclusive, the
// neighbourhood lookup Pass 2 expansion needs (spec.md §4.7).
func (t *Trellis) AtomsInRange(from, to int) []*Atom {
	var out []*Atom
	for frame := from; frame <= to; frame++ {
		out = append(out, t.byEnd[frame]...)
	}
	return out
}

// Backtrace follows Prev links from the given atom id back to the
// utterance start, returning atoms in chronological (begin-to-end) order.
func (t *Trellis) Backtrace(id int) []*Atom {
	var rev []*Atom
	for id >= 0 {
		a := t.Atom(id)
		if a == nil {
			break
		}
		rev = append(rev, a)
		id = a.Prev
	}
	out := make([]*Atom, len(rev))
	for i, a := range rev {
		out[len(rev)-1-i] = a
	}
	return out
}
