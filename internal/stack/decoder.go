package stack

import (
	"context"
	"sort"

	"github.com/example/go-recog/internal/trellis"
	"golang.org/x/sync/errgroup"
)

// Scorer supplies the exact backward LM score for a candidate word given
// the (up to) two words already attached to its right, per spec.md §4.7's
// expansion step.
type Scorer interface {
	Backward(word, next1, next2 int) float64
}

// Candidates returns the set of words the LM (N-gram successors or DFA
// predecessors) allows immediately before next1 (with next2 one further
// to the right), -1 when absent.
type Candidates func(next1, next2 int) []int

// Config carries the Pass-2 pruning and termination tunables of
// spec.md §4.7.
type Config struct {
	MaxStackDepth int
	ScanBeamThres float64
	MaxSentences  int
	MaxPops       int
	LookupRange   int
}

// Decoder drives the A★ search in reverse over a finalized trellis.
type Decoder struct {
	tr         *trellis.Trellis
	heuristic  *Heuristic
	scorer     Scorer
	candidates Candidates
	cfg        Config
}

// NewDecoder returns a Decoder ready to search tr backward from
// lastFrame's heuristic table.
func NewDecoder(tr *trellis.Trellis, heuristic *Heuristic, scorer Scorer, candidates Candidates, cfg Config) *Decoder {
	return &Decoder{tr: tr, heuristic: heuristic, scorer: scorer, candidates: candidates, cfg: cfg}
}

// Run executes the stack search, returning completed sentence hypotheses
// sorted best-first. Termination follows spec.md §4.7: stop after
// cfg.MaxSentences full hypotheses are found or cfg.MaxPops total pops.
func (d *Decoder) Run(ctx context.Context, lastFrame int) ([]*Hypothesis, error) {
	st := NewStack(d.cfg.MaxStackDepth)
	root := st.Acquire()
	root.Frame = lastFrame + 1
	root.H = d.heuristic.At(lastFrame + 1)
	st.Push(root)

	bestAtLength := make(map[int]float64)
	var sentences []*Hypothesis
	pops := 0

	for st.Len() > 0 {
		if d.cfg.MaxPops > 0 && pops >= d.cfg.MaxPops {
			break
		}
		if d.cfg.MaxSentences > 0 && len(sentences) >= d.cfg.MaxSentences {
			break
		}
		hyp, ok := st.Pop()
		if !ok {
			break
		}
		pops++

		if hyp.Frame <= 0 {
			sentences = append(sentences, hyp)
			continue
		}

		expanded, err := d.expand(ctx, hyp)
		if err != nil {
			return nil, err
		}
		for _, n := range expanded {
			length := len(n.Words)
			if best, ok := bestAtLength[length]; ok && n.F() < best-d.cfg.ScanBeamThres {
				st.Recycle(n) // envelope-beam reject (spec.md §4.7 pruning (c))
				continue
			}
			if cur, ok := bestAtLength[length]; !ok || n.F() > cur {
				bestAtLength[length] = n.F()
			}
			st.Push(n)
		}
		st.Recycle(hyp)
	}

	sort.Slice(sentences, func(i, j int) bool { return sentences[i].G > sentences[j].G })
	return sentences, nil
}

// expand looks up, for every LM-allowed candidate word, the best trellis
// atom ending strictly before hyp.Frame within the configured lookup
// window, and pushes one child hypothesis per candidate that found an
// atom. Candidate lookups run concurrently since each is independent.
func (d *Decoder) expand(ctx context.Context, hyp *Hypothesis) ([]*Hypothesis, error) {
	next1, next2 := -1, -1
	if len(hyp.Words) > 0 {
		next1 = hyp.Words[0]
	}
	if len(hyp.Words) > 1 {
		next2 = hyp.Words[1]
	}

	cands := d.candidates(next1, next2)
	results := make([]*Hypothesis, len(cands))

	low := hyp.Frame - d.cfg.LookupRange
	if low < 0 {
		low = 0
	}
	high := hyp.Frame + d.cfg.LookupRange

	g, _ := errgroup.WithContext(ctx)
	for i, w := range cands {
		i, w := i, w
		g.Go(func() error {
			atom := d.bestAtomBefore(w, hyp.Frame, low, high)
			if atom == nil {
				return nil
			}
			segScore := atom.Score
			if prev := d.tr.Atom(atom.Prev); prev != nil {
				segScore -= prev.Score
			}
			lmScore := d.scorer.Backward(w, next1, next2)
			results[i] = &Hypothesis{
				Words: append(append([]int{}, w), hyp.Words...),
				Frame: atom.Begin,
				G:     hyp.G + segScore + lmScore,
				H:     d.heuristic.At(atom.Begin),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Hypothesis, 0, len(results))
	for _, h := range results {
		if h != nil {
			out = append(out, h)
		}
	}
	return out, nil
}

// bestAtomBefore returns the highest-scoring atom for word ending inside
// [low, high] and strictly before beforeFrame, or nil if none exists.
func (d *Decoder) bestAtomBefore(word, beforeFrame, low, high int) *trellis.Atom {
	var best *trellis.Atom
	for _, a := range d.tr.AtomsInRange(low, high) {
		if a.WordID != word || a.End >= beforeFrame {
			continue
		}
		if best == nil || a.Score > best.Score {
			best = a
		}
	}
	return best
}
