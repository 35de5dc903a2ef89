package stack

import "container/heap"

// hypHeap is a max-heap over Hypothesis.F(), the f = g + h priority
// order spec.md §4.7's stack hypothesis entry calls for.
type hypHeap []*Hypothesis

func (h hypHeap) Len() int            { return len(h) }
func (h hypHeap) Less(i, j int) bool  { return h[i].F() > h[j].F() }
func (h hypHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hypHeap) Push(x interface{}) { *h = append(*h, x.(*Hypothesis)) }
func (h *hypHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Stack is the bounded priority queue: on overflow the worst hypothesis
// is discarded, and a recycle pool holds freed hypotheses for reuse
// (spec.md §3 "Stack hypothesis (Pass 2)").
type Stack struct {
	heap     hypHeap
	maxDepth int
	recycle  []*Hypothesis
}

// NewStack returns an empty stack capped at maxDepth entries; maxDepth <=
// 0 means unbounded.
func NewStack(maxDepth int) *Stack {
	return &Stack{maxDepth: maxDepth}
}

// Push inserts a hypothesis, evicting the current worst entry if doing so
// would exceed maxDepth.
func (s *Stack) Push(h *Hypothesis) {
	heap.Push(&s.heap, h)
	if s.maxDepth > 0 && len(s.heap) > s.maxDepth {
		s.evictWorst()
	}
}

func (s *Stack) evictWorst() {
	if len(s.heap) == 0 {
		return
	}
	worst := 0
	for i := 1; i < len(s.heap); i++ {
		if s.heap[i].F() < s.heap[worst].F() {
			worst = i
		}
	}
	discarded := s.heap[worst]
	heap.Remove(&s.heap, worst)
	s.Recycle(discarded)
}

// Pop removes and returns the best (highest f) hypothesis.
func (s *Stack) Pop() (*Hypothesis, bool) {
	if len(s.heap) == 0 {
		return nil, false
	}
	return heap.Pop(&s.heap).(*Hypothesis), true
}

// Len reports how many hypotheses are currently on the stack.
func (s *Stack) Len() int { return len(s.heap) }

// Recycle returns a freed hypothesis to the pool instead of letting it be
// garbage collected.
func (s *Stack) Recycle(h *Hypothesis) {
	s.recycle = append(s.recycle, h)
}

// Acquire returns a zeroed hypothesis, reusing one from the recycle pool
// when available.
func (s *Stack) Acquire() *Hypothesis {
	if n := len(s.recycle); n > 0 {
		h := s.recycle[n-1]
		s.recycle = s.recycle[:n-1]
		*h = Hypothesis{}
		return h
	}
	return &Hypothesis{}
}
