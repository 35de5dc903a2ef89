package tokenpool

import "sort"

// mergeKey identifies the (state, context) slot spec.md §3 requires at
// most one token for under the 1-best-per-state approximation (context
// always 0) or, under word-pair approximation, one token per (state,
// previous word id) pair.
type mergeKey struct {
	state   int
	context int
}

// BeamSet holds the surviving tokens for one frame, replacing mutable
// iteration-order-via-sort-indices (spec.md §9) with an explicit type:
// insertion order is irrelevant, only the per-slot scores and whatever
// snapshot RetainTopK/IterTopK compute.
type BeamSet struct {
	wordPair bool
	limit    int // per-state cap on distinct contexts under word-pair approximation; 0 = unbounded
	slots    map[mergeKey]Token
	order    []mergeKey // insertion order, for deterministic iteration
}

// NewBeamSet returns an empty beam set. wordPair selects the word-pair
// approximation (a limit of tokens per state keyed by previous word id)
// over the default 1-best-per-state approximation. limit is ignored
// unless wordPair is true; limit <= 0 means unbounded.
func NewBeamSet(wordPair bool, limit int) *BeamSet {
	return &BeamSet{
		wordPair: wordPair,
		limit:    limit,
		slots:    make(map[mergeKey]Token),
	}
}

func (b *BeamSet) keyFor(tok Token) mergeKey {
	if b.wordPair {
		return mergeKey{state: tok.State, context: tok.LMContext}
	}
	return mergeKey{state: tok.State, context: 0}
}

// Insert merges tok into the beam. Under Open Question (a)'s decision, an
// incoming token replaces the slot's incumbent only on strict score
// improvement (ties keep the incumbent). Under word-pair approximation,
// if inserting a new context would push the state over its per-state
// limit, the lowest-scoring context for that state is evicted first.
func (b *BeamSet) Insert(tok Token) {
	key := b.keyFor(tok)
	if cur, ok := b.slots[key]; ok {
		if tok.Score > cur.Score {
			b.slots[key] = tok
		}
		return
	}

	if b.wordPair && b.limit > 0 {
		b.evictIfOverLimit(tok.State)
	}
	b.slots[key] = tok
	b.order = append(b.order, key)
}

func (b *BeamSet) evictIfOverLimit(state int) {
	var contexts []mergeKey
	for k := range b.slots {
		if k.state == state {
			contexts = append(contexts, k)
		}
	}
	if len(contexts) < b.limit {
		return
	}
	worst := contexts[0]
	worstScore := b.slots[worst].Score
	for _, k := range contexts[1:] {
		if s := b.slots[k].Score; s < worstScore {
			worst, worstScore = k, s
		}
	}
	delete(b.slots, worst)
	for i, k := range b.order {
		if k == worst {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Len reports how many distinct (state, context) slots are occupied.
func (b *BeamSet) Len() int { return len(b.slots) }

// RetainTopK discards all but the k highest-scoring tokens in the beam,
// the per-frame pruning step that bounds Pass-1 memory and compute.
func (b *BeamSet) RetainTopK(k int) {
	if k <= 0 || len(b.slots) <= k {
		return
	}
	type scored struct {
		key   mergeKey
		score float64
	}
	all := make([]scored, 0, len(b.slots))
	for key, tok := range b.slots {
		all = append(all, scored{key, tok.Score})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	keep := make(map[mergeKey]bool, k)
	for i := 0; i < k; i++ {
		keep[all[i].key] = true
	}
	for key := range b.slots {
		if !keep[key] {
			delete(b.slots, key)
		}
	}
	newOrder := b.order[:0]
	for _, key := range b.order {
		if keep[key] {
			newOrder = append(newOrder, key)
		}
	}
	b.order = newOrder
}

// IterTopK calls fn once per surviving token, in descending score order,
// stopping early if fn returns false.
func (b *BeamSet) IterTopK(fn func(tok Token) bool) {
	tokens := make([]Token, 0, len(b.slots))
	for _, tok := range b.slots {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Score > tokens[j].Score })
	for _, tok := range tokens {
		if !fn(tok) {
			return
		}
	}
}

// Best returns the highest-scoring token in the beam and true, or the
// zero Token and false if the beam is empty.
func (b *BeamSet) Best() (Token, bool) {
	var best Token
	found := false
	for _, tok := range b.slots {
		if !found || tok.Score > best.Score {
			best = tok
			found = true
		}
	}
	return best, found
}
