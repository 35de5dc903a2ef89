// Package align implements the forced aligner (C9): given a word
// sequence already resolved to physical HMMs, concatenate their states
// into one flat left-to-right HMM and Viterbi-align it against an
// utterance's feature sequence, producing word/phone/state boundaries.
// Grounded on spec.md §4.9.
package align

import (
	"fmt"
	"math"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/gauss"
	"gonum.org/v1/gonum/mat"
)

var negInf = math.Inf(-1)

// WordSpan is one word of the sequence to align: its id and pronunciation
// already resolved to physical HMMs, the same shape lexicon.WordPron uses.
type WordSpan struct {
	WordID int
	HMMs   []*acmodel.PhysicalHMM
}

// Config carries the Gaussian evaluator tuning and the optional
// inter-word short-pause HMM spec.md §4.9 allows inserting between words.
type Config struct {
	GaussMode        gauss.Mode
	GaussTopK        int
	GaussWindow      int
	VarianceInverted bool
	ShortPause       *acmodel.PhysicalHMM
}

// flatState is one emitting state of the concatenated chain, carrying
// enough bookkeeping to recover word/phone/state boundaries from a
// backtrace. selfLoop/enter follow lexicon.Tree.AddWord's convention:
// the edge arriving at a physical HMM's i'th state is approximated by
// row i of that HMM's own transition matrix.
type flatState struct {
	st       *acmodel.State
	selfLoop float64
	enter    float64
	wordIdx  int
	phoneIdx int
	stateIdx int
}

func flatten(words []WordSpan, cfg Config) ([]flatState, error) {
	var out []flatState
	appendHMM := func(p *acmodel.PhysicalHMM, wordIdx, phoneIdx int) error {
		if len(p.States) == 0 {
			return fmt.Errorf("align: word %d phone %d (%q) has no states", wordIdx, phoneIdx, p.Name)
		}
		for i, st := range p.States {
			fs := flatState{st: st, wordIdx: wordIdx, phoneIdx: phoneIdx, stateIdx: i}
			if p.Trans != nil && i < len(p.Trans.A) && i < len(p.Trans.A[i]) {
				fs.selfLoop = p.Trans.A[i][i]
			}
			if p.Trans != nil && i < p.Trans.NumStates-1 && i+1 < len(p.Trans.A[i]) {
				fs.enter = p.Trans.A[i][i+1]
			}
			out = append(out, fs)
		}
		return nil
	}

	for wi, w := range words {
		if wi > 0 && cfg.ShortPause != nil {
			if err := appendHMM(cfg.ShortPause, wi, -1); err != nil {
				return nil, err
			}
		}
		for pi, p := range w.HMMs {
			if err := appendHMM(p, wi, pi); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("align: empty word sequence")
	}
	return out, nil
}

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

// Unit is one aligned segment at whatever granularity was asked for.
type Unit struct {
	WordIdx   int
	PhoneIdx  int // -1 for an inserted short pause, meaningless at word granularity
	StateIdx  int // meaningless above state granularity
	Start     int
	End       int
	AvgLogLik float64
}

// Result is a completed alignment with all three granularities spelled
// out, plus the whole-path Viterbi score spec.md §4.9 calls for.
type Result struct {
	Words  []Unit
	Phones []Unit
	States []Unit
	Score  float64
}

// Run aligns words against frames (one feature vector per frame),
// forcing the chain to start in its first state at frame 0 and finish in
// its last state at the last frame — the standard forced-alignment
// constraint, since no other sequence fits what it was told to align.
func Run(words []WordSpan, cfg Config, frames [][]float64) (*Result, error) {
	flat, err := flatten(words, cfg)
	if err != nil {
		return nil, err
	}
	S := len(flat)
	T := len(frames)
	if T == 0 {
		return nil, fmt.Errorf("align: empty feature sequence")
	}
	if T < S {
		return nil, fmt.Errorf("align: %d frames too few for %d states", T, S)
	}

	ev := gauss.NewEvaluator(cfg.GaussMode, cfg.GaussTopK, cfg.GaussWindow)
	dp := mat.NewDense(T, S, nil)
	// 0 = arrived via self-loop, 1 = arrived by advancing from the
	// previous state; kept apart from dp since backpointers are
	// categorical, not scores.
	back := make([][]uint8, T)
	for t := range back {
		back[t] = make([]uint8, S)
	}

	out := func(s, t int) float64 {
		gs, ws := stateGaussians(flat[s].st, cfg.VarianceInverted)
		return ev.Evaluate(flat[s].st.ID, t, frames[t], gs, ws).Output
	}

	for s := 0; s < S; s++ {
		if s == 0 {
			dp.Set(0, 0, out(0, 0))
		} else {
			dp.Set(0, s, negInf)
		}
	}

	for t := 1; t < T; t++ {
		for s := 0; s < S; s++ {
			stay := dp.At(t-1, s) + flat[s].selfLoop
			best := stay
			var via uint8
			if s > 0 {
				if adv := dp.At(t-1, s-1) + flat[s].enter; adv > best {
					best = adv
					via = 1
				}
			}
			if math.IsInf(best, -1) {
				dp.Set(t, s, negInf)
				back[t][s] = via
				continue
			}
			dp.Set(t, s, best+out(s, t))
			back[t][s] = via
		}
	}

	finalScore := dp.At(T-1, S-1)
	if math.IsInf(finalScore, -1) {
		return nil, fmt.Errorf("align: no valid path reaches the final state in %d frames", T)
	}

	// Backtrace: walk from (T-1, S-1) to frame 0, recording the state
	// occupied at every frame, then derive boundaries from the runs.
	occupant := make([]int, T)
	s := S - 1
	for t := T - 1; t >= 0; t-- {
		occupant[t] = s
		if t == 0 {
			break
		}
		if back[t][s] == 1 {
			s--
		}
	}

	states := make([]Unit, 0, S)
	runStart := 0
	for t := 1; t <= T; t++ {
		if t < T && occupant[t] == occupant[t-1] {
			continue
		}
		states = append(states, summarize(occupant[t-1], flat, runStart, t, dp))
		runStart = t
	}

	phones := mergeUnits(states, func(u Unit) (int, int) { return u.WordIdx, u.PhoneIdx })
	wordsOut := mergeUnits(states, func(u Unit) (int, int) { return u.WordIdx, 0 })
	for i := range wordsOut {
		wordsOut[i].PhoneIdx = -1
		wordsOut[i].StateIdx = -1
	}
	for i := range phones {
		phones[i].StateIdx = -1
	}

	return &Result{Words: wordsOut, Phones: phones, States: states, Score: finalScore}, nil
}

func summarize(s int, flat []flatState, start, end int, dp *mat.Dense) Unit {
	span := float64(end - start)
	segScore := dp.At(end-1, s)
	if start > 0 {
		// The path only stays or advances one state per frame, so a run
		// of state s that starts after frame 0 was entered from s-1.
		segScore -= dp.At(start-1, s-1)
	}
	fs := flat[s]
	return Unit{
		WordIdx: fs.wordIdx, PhoneIdx: fs.phoneIdx, StateIdx: fs.stateIdx,
		Start: start, End: end, AvgLogLik: segScore / span,
	}
}

// mergeUnits coalesces consecutive state-granularity units sharing the
// same (keyA, keyB) group into one wider unit, averaging AvgLogLik
// weighted by span length.
func mergeUnits(states []Unit, key func(Unit) (int, int)) []Unit {
	var out []Unit
	for _, u := range states {
		a, b := key(u)
		if len(out) > 0 {
			last := &out[len(out)-1]
			la, lb := key(*last)
			if la == a && lb == b {
				lastSpan := float64(last.End - last.Start)
				span := float64(u.End - u.Start)
				last.AvgLogLik = (last.AvgLogLik*lastSpan + u.AvgLogLik*span) / (lastSpan + span)
				last.End = u.End
				continue
			}
		}
		out = append(out, u)
	}
	return out
}
