package lm

// Category is a DFA grammar's terminal symbol class: a named group of
// dictionary word ids that are all interchangeable at a given DFA
// transition, per spec.md §3's "category-based" DFA grammar.
type Category struct {
	ID    int
	Words []int // dictionary entry indices belonging to this category
}

// DFAState is one state of the grammar automaton: its outgoing
// transitions keyed by category id, and whether it is an accepting
// (sentence-final) state.
type DFAState struct {
	ID          int
	Transitions map[int]int // category id -> destination state id
	Accept      bool
}

// DFA is a deterministic finite automaton over grammar categories, plus
// the derived category-pair table spec.md §4.4 point 3 requires for
// constraining inter-word transitions in a per-category lexicon tree.
type DFA struct {
	States       []*DFAState
	Categories   []*Category
	Start        int
	categoryPair map[[2]int]bool // built lazily by BuildCategoryPairTable
}

// NewDFA returns an empty automaton with no states or categories.
func NewDFA() *DFA {
	return &DFA{}
}

// AddCategory appends a new category and returns it.
func (d *DFA) AddCategory(words []int) *Category {
	c := &Category{ID: len(d.Categories), Words: append([]int{}, words...)}
	d.Categories = append(d.Categories, c)
	return c
}

// AddState appends a new state and returns it.
func (d *DFA) AddState(accept bool) *DFAState {
	s := &DFAState{ID: len(d.States), Transitions: make(map[int]int), Accept: accept}
	d.States = append(d.States, s)
	return s
}

// AddTransition records that, from state `from`, consuming a word of
// category `category` leads to state `to`.
func (d *DFA) AddTransition(from, category, to int) {
	d.States[from].Transitions[category] = to
	d.categoryPair = nil // invalidate any cached pair table
}

// NextState returns the destination state for (from, category), or ok ==
// false if that transition does not exist.
func (d *DFA) NextState(from, category int) (to int, ok bool) {
	to, ok = d.States[from].Transitions[category]
	return to, ok
}

// BuildCategoryPairTable derives, for every pair of categories (a, b),
// whether some DFA state accepts a followed immediately by b — the
// per-category-pair constraint spec.md §4.4 applies when expanding
// inter-word transitions in a category tree. The table is cached until
// the next AddTransition call.
func (d *DFA) BuildCategoryPairTable() {
	table := make(map[[2]int]bool)
	for _, s := range d.States {
		for catA, next := range s.Transitions {
			for catB := range d.States[next].Transitions {
				table[[2]int{catA, catB}] = true
			}
		}
	}
	d.categoryPair = table
}

// Allowed reports whether category `to` may immediately follow category
// `from` anywhere in the grammar, per the cached pair table (building it
// on first use).
func (d *DFA) Allowed(from, to int) bool {
	if d.categoryPair == nil {
		d.BuildCategoryPairTable()
	}
	return d.categoryPair[[2]int{from, to}]
}
