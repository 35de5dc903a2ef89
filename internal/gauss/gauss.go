// Package gauss scores feature vectors against sets of diagonal-covariance
// Gaussian densities, the output-probability computation shared by the
// Pass-1 search, the forced aligner, and the GMM verifier.
//
// Variances are stored pre-inverted (the data model's invvar convention),
// so a density's log probability is -0.5*(gconst + sum((x-mean)^2 * invvar)),
// the same arrangement compute_g_base uses.
package gauss

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Mode selects how a Gaussian set is pruned before the top-K mixture
// components are combined into a state output probability.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeSafe      Mode = "safe"
	ModeBeam      Mode = "beam"
	ModeHeuristic Mode = "heuristic"
)

// Gaussian is a single diagonal-covariance density: mean, pre-inverted
// variance, and the HTK gconst bias term (log(2pi^n * det(var)) folded in).
type Gaussian struct {
	Mean   []float64
	InvVar []float64
	GConst float64
}

// LogProb computes the full, unpruned log probability of vec under g.
func (g *Gaussian) LogProb(vec []float64) float64 {
	acc := g.GConst
	for i, m := range g.Mean {
		x := vec[i] - m
		acc += x * x * g.InvVar[i]
	}
	return acc * -0.5
}

// partial returns the running Mahalanobis accumulation (excluding gconst
// and the final -0.5 scale) together with whether the early-exit bound was
// crossed before all dimensions were visited. bound is derived from the
// current pruning threshold: -2*threshold - gconst. Since every added term
// is non-negative, once the partial sum exceeds bound the final score can
// only be worse than the threshold and g is abandoned.
func (g *Gaussian) partial(vec []float64, bound float64) (score float64, ok bool) {
	var acc float64
	for i, m := range g.Mean {
		x := vec[i] - m
		acc += x * x * g.InvVar[i]
		if acc > bound {
			return 0, false
		}
	}
	return (g.GConst + acc) * -0.5, true
}

// ScoredGaussian is a mixture component id paired with its log probability.
type ScoredGaussian struct {
	ID    int
	Score float64
}

// Result is the output of scoring one state on one frame: the combined
// mixture log probability and the surviving top-K component scores.
type Result struct {
	Output float64
	TopK   []ScoredGaussian
}

type cacheKey struct {
	state int
	frame int
}

type stateHistory struct {
	frame int
	topK  []ScoredGaussian
	best  float64
}

// Evaluator scores Gaussian mixture sets frame by frame, caching results
// per (state, frame) so a state probed from several lexicon positions in
// the same frame is computed only once, and retaining per-state history
// across frames to seed the beam and heuristic pruning modes.
type Evaluator struct {
	mode            Mode
	topK            int
	heuristicWindow int

	mu      sync.Mutex
	cache   map[cacheKey]Result
	history map[int]stateHistory
}

// NewEvaluator builds an Evaluator. topK is the configured prune count (the
// number of mixture components kept per state); heuristicWindow widens the
// previous frame's surviving set for ModeHeuristic.
func NewEvaluator(mode Mode, topK, heuristicWindow int) *Evaluator {
	return &Evaluator{
		mode:            mode,
		topK:            topK,
		heuristicWindow: heuristicWindow,
		cache:           make(map[cacheKey]Result),
		history:         make(map[int]stateHistory),
	}
}

// Reset clears all cached results and per-state history, for reuse across
// utterances.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[cacheKey]Result)
	e.history = make(map[int]stateHistory)
}

// Evaluate scores gaussians (with mixture log-weights) for state on frame
// against vec, returning the cached result if this (state, frame) pair was
// already computed.
func (e *Evaluator) Evaluate(state, frame int, vec []float64, gaussians []Gaussian, logWeights []float64) Result {
	key := cacheKey{state, frame}

	e.mu.Lock()
	if r, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return r
	}
	prev, havePrev := e.history[state]
	e.mu.Unlock()

	var topK []ScoredGaussian
	switch e.mode {
	case ModeSafe:
		topK = e.computeThresholded(gaussians, vec, math.Inf(-1))
	case ModeBeam:
		seedBest := math.Inf(-1)
		if havePrev && prev.frame == frame-1 {
			seedBest = prev.best
		}
		topK = e.computeThresholded(gaussians, vec, seedBest)
	case ModeHeuristic:
		if havePrev && prev.frame == frame-1 && len(prev.topK) > 0 {
			topK = e.computeHeuristic(gaussians, vec, prev.topK)
		} else {
			topK = e.computeThresholded(gaussians, vec, math.Inf(-1))
		}
	default: // ModeNone and unrecognised modes fall back to exhaustive compute
		topK = e.computeAll(gaussians, vec)
	}

	sort.Slice(topK, func(i, j int) bool { return topK[i].Score > topK[j].Score })
	if e.topK > 0 && len(topK) > e.topK {
		topK = topK[:e.topK]
	}

	res := Result{Output: combineMixture(topK, logWeights), TopK: topK}

	best := math.Inf(-1)
	if len(topK) > 0 {
		best = topK[0].Score
	}

	e.mu.Lock()
	e.cache[key] = res
	e.history[state] = stateHistory{frame: frame, topK: topK, best: best}
	e.mu.Unlock()

	return res
}

func (e *Evaluator) computeAll(gaussians []Gaussian, vec []float64) []ScoredGaussian {
	out := make([]ScoredGaussian, len(gaussians))
	for i := range gaussians {
		out[i] = ScoredGaussian{ID: i, Score: gaussians[i].LogProb(vec)}
	}
	return out
}

// computeThresholded implements the "safe" pruning mode: a running k-th-best
// threshold seeded by seedBest (ModeBeam's previous-frame best, or -Inf for
// plain ModeSafe), with each Gaussian abandoned early once its partial
// Mahalanobis term can no longer beat the threshold.
func (e *Evaluator) computeThresholded(gaussians []Gaussian, vec []float64, seedBest float64) []ScoredGaussian {
	kept := make([]ScoredGaussian, 0, e.topK+1)
	threshold := seedBest

	for i := range gaussians {
		bound := math.Inf(1)
		if !math.IsInf(threshold, -1) {
			bound = -2*threshold - gaussians[i].GConst
		}
		score, ok := gaussians[i].partial(vec, bound)
		if !ok {
			continue
		}
		kept = append(kept, ScoredGaussian{ID: i, Score: score})
		if e.topK > 0 && len(kept) > e.topK {
			sort.Slice(kept, func(a, b int) bool { return kept[a].Score > kept[b].Score })
			kept = kept[:e.topK]
		}
		if e.topK > 0 && len(kept) == e.topK {
			worst := kept[len(kept)-1].Score
			if worst > threshold {
				threshold = worst
			}
		}
	}
	return kept
}

// computeHeuristic restricts scoring to the ids that survived the previous
// frame's top-K plus a fixed window of neighbouring ids on either side, the
// cheapest of the four modes since it never visits the full Gaussian set
// once history is available.
func (e *Evaluator) computeHeuristic(gaussians []Gaussian, vec []float64, prevTopK []ScoredGaussian) []ScoredGaussian {
	candidate := make(map[int]struct{})
	for _, sg := range prevTopK {
		lo := sg.ID - e.heuristicWindow
		hi := sg.ID + e.heuristicWindow
		if lo < 0 {
			lo = 0
		}
		if hi >= len(gaussians) {
			hi = len(gaussians) - 1
		}
		for id := lo; id <= hi; id++ {
			candidate[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(candidate))
	for id := range candidate {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]ScoredGaussian, 0, len(ids))
	for _, id := range ids {
		out = append(out, ScoredGaussian{ID: id, Score: gaussians[id].LogProb(vec)})
	}
	return out
}

// combineMixture log-sums the kept component scores weighted by their
// mixture log-weights into a single state output log probability.
func combineMixture(topK []ScoredGaussian, logWeights []float64) float64 {
	if len(topK) == 0 {
		return math.Inf(-1)
	}
	max := math.Inf(-1)
	terms := make([]float64, len(topK))
	for i, sg := range topK {
		w := 0.0
		if logWeights != nil && sg.ID < len(logWeights) {
			w = logWeights[sg.ID]
		}
		terms[i] = sg.Score + w
		if terms[i] > max {
			max = terms[i]
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}
	var sum float64
	for _, t := range terms {
		sum += math.Exp(t - max)
	}
	return max + math.Log(sum)
}

// StateInput bundles one state's Gaussian mixture for a single-frame batch
// evaluation across a frame's active states.
type StateInput struct {
	State      int
	Gaussians  []Gaussian
	LogWeights []float64
}

// EvaluateFrame scores every state in states against vec on frame,
// concurrently across states, and returns a map keyed by state id. Each
// state's Gaussian set is independent work, so the fan-out uses errgroup
// the same way a bounded concurrent request pool would.
func (e *Evaluator) EvaluateFrame(ctx context.Context, frame int, vec []float64, states []StateInput) (map[int]Result, error) {
	results := make([]Result, len(states))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range states {
		i, s := i, s
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = e.Evaluate(s.State, frame, vec, s.Gaussians, s.LogWeights)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int]Result, len(states))
	for i, s := range states {
		out[s.State] = results[i]
	}
	return out, nil
}
