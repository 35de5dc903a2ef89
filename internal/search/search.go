// Package search implements the Pass-1 frame-synchronous Viterbi beam
// search (C5): token passing over a lexicon tree with LM factoring,
// writing surviving word ends into a word trellis. Grounded on spec.md
// §4.5 and on the pass-1 driver loop in
// `_examples/original_source/libjulius/src/recogmain.c`.
package search

import (
	"math"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/gauss"
	"github.com/example/go-recog/internal/lexicon"
	"github.com/example/go-recog/internal/tokenpool"
	"github.com/example/go-recog/internal/trellis"
)

var negInf = math.Inf(-1)

// Config carries the Pass-1 tunables: beam width, the token-merge
// approximation, and Gaussian pruning. It has no cross-word IWCD1 setting;
// the search does not apply lexicon.SummarizeBoundary at word boundaries.
type Config struct {
	BeamWidth       int
	WordPair        bool
	WordPairLimit   int
	GaussMode       gauss.Mode
	GaussTopK       int
	GaussWindow     int
	VarianceInvert  bool // model already stores inverted variances
}

// Searcher drives one utterance's Pass-1 search over a lexicon tree.
type Searcher struct {
	tree    *lexicon.Tree
	scorer  Scorer
	cfg     Config
	gaussEv *gauss.Evaluator
	tre     *trellis.Trellis

	frame     int
	phase     Phase
	prevBeam  *tokenpool.BeamSet
	liveCount int
}

// New returns a Searcher ready to process frame 0 of a fresh utterance.
func New(tree *lexicon.Tree, scorer Scorer, cfg Config) *Searcher {
	s := &Searcher{
		tree:    tree,
		scorer:  scorer,
		cfg:     cfg,
		gaussEv: gauss.NewEvaluator(cfg.GaussMode, cfg.GaussTopK, cfg.GaussWindow),
		tre:     trellis.New(),
		phase:   PhaseInit,
	}
	s.prevBeam = tokenpool.NewBeamSet(cfg.WordPair, cfg.WordPairLimit)
	s.prevBeam.Insert(tokenpool.Token{State: tree.Root.ID, PrevWordEnd: -1, LMContext: -1, Begin: 0})
	s.phase = PhaseRunning
	return s
}

// Phase reports the searcher's current state.
func (s *Searcher) Phase() Phase { return s.phase }

// Trellis returns the word trellis accumulated so far. Callers should
// call Finalize on it only once the search has stopped producing atoms.
func (s *Searcher) Trellis() *trellis.Trellis { return s.tre }

func stateGaussians(st *acmodel.State, varianceInverted bool) ([]gauss.Gaussian, []float64) {
	n := st.MixtureCount()
	gs := make([]gauss.Gaussian, n)
	ws := make([]float64, n)
	for i := 0; i < n; i++ {
		d := st.Density(i)
		invVar := make([]float64, len(d.Var.Vec))
		for j, v := range d.Var.Vec {
			if varianceInverted {
				invVar[j] = v
			} else if v != 0 {
				invVar[j] = 1.0 / v
			}
		}
		gs[i] = gauss.Gaussian{Mean: d.Mean, InvVar: invVar, GConst: d.GConst}
		if i < len(st.Weight) {
			ws[i] = st.Weight[i]
		}
	}
	return gs, ws
}

func (s *Searcher) outputProb(n *lexicon.Node, vec []float64) float64 {
	if n.State == nil {
		return 0
	}
	gs, ws := stateGaussians(n.State, s.cfg.VarianceInvert)
	res := s.gaussEv.Evaluate(n.State.ID, s.frame, vec, gs, ws)
	return res.Output
}

// emitWordEnd finalises a word hypothesis reaching its terminal node:
// the factoring estimate accumulated along the path is replaced by the
// exact LM score (spec.md §4.5 point 2), a trellis atom is recorded, and
// a continuation token is spawned back at the tree root to start the
// next word.
func (s *Searcher) emitWordEnd(node *lexicon.Node, tok tokenpool.Token, score, factoring float64, next *tokenpool.BeamSet) {
	exact := s.scorer.Forward(tok.LMContext, node.WordID)
	final := score - factoring + exact
	atom := s.tre.Add(node.WordID, tok.Begin, s.frame, tok.PrevWordEnd, final, exact)

	newContext := tok.LMContext
	if !s.scorer.IsTransparent(node.WordID) {
		newContext = node.WordID
	}
	next.Insert(tokenpool.Token{
		State: s.tree.Root.ID, Score: final, PrevWordEnd: atom.ID,
		LMContext: newContext, LMFactoring: 0, Begin: s.frame + 1,
	})
}

// ProcessFrame advances the search by one frame over the given feature
// vector.
func (s *Searcher) ProcessFrame(vec []float64) {
	if s.phase != PhaseRunning {
		return
	}
	next := tokenpool.NewBeamSet(s.cfg.WordPair, s.cfg.WordPairLimit)

	s.prevBeam.IterTopK(func(tok tokenpool.Token) bool {
		node := s.tree.NodeByID(tok.State)
		if node == nil {
			return true
		}

		// Self-loop: stay on the same emitting state. If that state is
		// also a word end, the word may complete on this very frame —
		// both possibilities (stay longer vs. finish now) are kept as
		// alternative paths.
		if node.State != nil {
			score := tok.Score + node.SelfLoop + s.outputProb(node, vec)
			if node.IsWordEnd {
				s.emitWordEnd(node, tok, score, tok.LMFactoring, next)
			}
			next.Insert(tokenpool.Token{
				State: node.ID, Score: score, PrevWordEnd: tok.PrevWordEnd,
				LMContext: tok.LMContext, LMFactoring: tok.LMFactoring, Begin: tok.Begin,
			})
		}

		for _, edge := range node.Children {
			child := edge.To
			score := tok.Score + edge.LogProb + s.outputProb(child, vec)
			factoring := tok.LMFactoring
			if child.Factoring != tok.LMFactoring {
				score += child.Factoring - tok.LMFactoring
				factoring = child.Factoring
			}

			if child.IsWordEnd {
				s.emitWordEnd(child, tok, score, factoring, next)
				continue
			}

			next.Insert(tokenpool.Token{
				State: child.ID, Score: score, PrevWordEnd: tok.PrevWordEnd,
				LMContext: tok.LMContext, LMFactoring: factoring, Begin: tok.Begin,
			})
		}
		return true
	})

	next.RetainTopK(s.cfg.BeamWidth)
	s.liveCount = next.Len()
	s.prevBeam = next
	s.frame++

	if s.liveCount == 0 {
		s.phase = PhaseFailed
	}
}

// End marks the stream exhausted, transitioning Running -> Ended.
func (s *Searcher) End() {
	if s.phase == PhaseRunning {
		s.phase = PhaseEnded
	}
}

// Segment marks a short-pause boundary, transitioning Running -> Segmented.
func (s *Searcher) Segment() {
	if s.phase == PhaseRunning {
		s.phase = PhaseSegmented
	}
}

// Best returns the current frame's best-scoring live token, used for
// segmentation (spec.md §4.8 observes the best trellis atom per frame)
// and as the Pass-1 fallback if Pass 2 later fails.
func (s *Searcher) Best() (tokenpool.Token, bool) {
	return s.prevBeam.Best()
}

// LiveCount reports how many tokens survived the last ProcessFrame call.
func (s *Searcher) LiveCount() int { return s.liveCount }
