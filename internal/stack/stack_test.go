package stack

import (
	"context"
	"testing"

	"github.com/example/go-recog/internal/trellis"
)

func TestHeap_PopsHighestFFirst(t *testing.T) {
	st := NewStack(0)
	st.Push(&Hypothesis{G: -5})
	st.Push(&Hypothesis{G: -1})
	st.Push(&Hypothesis{G: -3})

	h, ok := st.Pop()
	if !ok || h.G != -1 {
		t.Fatalf("Pop() = %+v; want G=-1", h)
	}
}

func TestStack_EvictsWorstOnOverflow(t *testing.T) {
	st := NewStack(2)
	st.Push(&Hypothesis{G: -5})
	st.Push(&Hypothesis{G: -1})
	st.Push(&Hypothesis{G: -9}) // should evict -9, not -5 or -1

	if st.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", st.Len())
	}
	seen := map[float64]bool{}
	for st.Len() > 0 {
		h, _ := st.Pop()
		seen[h.G] = true
	}
	if seen[-9] {
		t.Error("worst hypothesis (-9) should have been evicted")
	}
	if !seen[-5] || !seen[-1] {
		t.Errorf("expected -5 and -1 to survive, got %v", seen)
	}
}

func TestStack_AcquireReusesRecycled(t *testing.T) {
	st := NewStack(0)
	h := st.Acquire()
	h.G = 42
	st.Recycle(h)

	reused := st.Acquire()
	if reused.G != 0 {
		t.Errorf("Acquire() after Recycle should return a zeroed hypothesis, got G=%v", reused.G)
	}
}

func TestHypothesis_SentenceMatchesWordsOrder(t *testing.T) {
	h := &Hypothesis{Words: []int{1, 2, 3}}
	got := h.Sentence()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sentence() = %v; want %v", got, want)
		}
	}
}

func TestHeuristic_BestCumulativeAtFrame(t *testing.T) {
	tr := trellis.New()
	tr.Add(1, 0, 3, -1, -2.0, 0)
	tr.Add(2, 0, 5, -1, -1.0, 0)
	tr.Finalize()

	h := BuildHeuristic(tr, 5)
	if h.At(5) != -1.0 {
		t.Errorf("At(5) = %v; want -1.0", h.At(5))
	}
	if h.At(0) != -1.0 {
		t.Errorf("At(0) = %v; want -1.0 (best seen at or after frame 0)", h.At(0))
	}
}

type constScorer struct{}

func (constScorer) Backward(word, next1, next2 int) float64 { return -0.5 }

func TestDecoder_FindsSentenceFromTrellis(t *testing.T) {
	tr := trellis.New()
	a0 := tr.Add(1, 0, 4, -1, -1.0, -0.1)
	tr.Add(2, 5, 9, a0.ID, -2.0, -0.1)
	tr.Finalize()

	heur := BuildHeuristic(tr, 9)
	candidates := func(next1, next2 int) []int {
		if next1 == -1 {
			return []int{2}
		}
		if next1 == 2 {
			return []int{1}
		}
		return nil
	}
	dec := NewDecoder(tr, heur, constScorer{}, candidates, Config{
		MaxStackDepth: 16, ScanBeamThres: 1e9, MaxSentences: 1, MaxPops: 100, LookupRange: 2,
	})

	sentences, err := dec.Run(context.Background(), 9)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sentences) != 1 {
		t.Fatalf("len(sentences) = %d; want 1", len(sentences))
	}
	got := sentences[0].Sentence()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Sentence() = %v; want [1 2]", got)
	}
}

func TestDecoder_MaxPopsStopsSearch(t *testing.T) {
	tr := trellis.New()
	tr.Finalize()
	heur := BuildHeuristic(tr, 0)
	dec := NewDecoder(tr, heur, constScorer{}, func(int, int) []int { return []int{1} }, Config{
		MaxStackDepth: 4, MaxPops: 1, LookupRange: 1,
	})
	sentences, err := dec.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sentences) != 0 {
		t.Errorf("expected no completed sentence with MaxPops=1 and no atoms, got %d", len(sentences))
	}
}
