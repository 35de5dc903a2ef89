// Package verify implements the GMM verifier (C10): a set of
// single-state, multi-mixture GMMs scored in parallel against the same
// feature stream Pass 1 consumes, used at utterance end to reject
// recognitions that best match a configured "junk" or out-of-grammar
// model. Grounded on spec.md §4.10.
package verify

import (
	"context"
	"math"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/gauss"
)

// GMM is one verification model: a name (checked against the reject-name
// set) and its mixture, represented the same way a single emitting state
// is elsewhere in this tree (a GMM is exactly that: one state's worth of
// weighted Gaussians, with no transition structure of its own).
type GMM struct {
	Name  string
	State *acmodel.State
}

// Config carries the verifier's tunables: the reject-name set and the
// posterior-confidence temperature alpha.
type Config struct {
	VarianceInverted bool
	Alpha            float64
	RejectNames      map[string]bool
}

// Verifier accumulates each GMM's cumulative log-likelihood frame by
// frame, independent of and parallel to the Pass-1 search.
type Verifier struct {
	gmms []GMM
	cfg  Config
	ev   *gauss.Evaluator

	cumulative []float64
	frame      int
}

// New returns a Verifier scoring every gmm against the same feature
// stream. gaussMode/topK/window tune the shared evaluator exactly as
// search.Config does for Pass 1.
func New(gmms []GMM, cfg Config, gaussMode gauss.Mode, topK, window int) *Verifier {
	return &Verifier{
		gmms:       gmms,
		cfg:        cfg,
		ev:         gauss.NewEvaluator(gaussMode, topK, window),
		cumulative: make([]float64, len(gmms)),
	}
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

// ProcessFrame scores vec against every configured GMM, concurrently,
// and adds each result into that GMM's running total. The evaluator's
// own (state, frame) cache keeps repeated Evaluate calls for the same
// GMM state on this frame free, but every GMM here has a distinct state
// id so the fan-out does real work for each one.
func (v *Verifier) ProcessFrame(ctx context.Context, vec []float64) error {
	inputs := make([]gauss.StateInput, len(v.gmms))
	for i, g := range v.gmms {
		gs, ws := stateGaussians(g.State, v.cfg.VarianceInverted)
		inputs[i] = gauss.StateInput{State: g.State.ID, Gaussians: gs, LogWeights: ws}
	}
	results, err := v.ev.EvaluateFrame(ctx, v.frame, vec, inputs)
	if err != nil {
		return err
	}
	for i, g := range v.gmms {
		v.cumulative[i] += results[g.State.ID].Output
	}
	v.frame++
	return nil
}

// Verdict is the utterance-final decision: the best-matching GMM, its
// cumulative score, whether it falls in the reject set, and a
// posterior-style confidence.
type Verdict struct {
	Best       string
	Score      float64
	Rejected   bool
	Confidence float64
}

// Result selects the max-scoring GMM and computes the posterior-style
// confidence 1 / sum(exp(alpha*(score_i - max))) spec.md §4.10 specifies.
// Returns ok=false if no GMM was configured.
func (v *Verifier) Result() (Verdict, bool) {
	if len(v.gmms) == 0 {
		return Verdict{}, false
	}
	best := 0
	for i, s := range v.cumulative {
		if s > v.cumulative[best] {
			best = i
		}
	}
	max := v.cumulative[best]

	var sum float64
	for _, s := range v.cumulative {
		sum += math.Exp(v.cfg.Alpha * (s - max))
	}
	confidence := 1.0
	if sum > 0 {
		confidence = 1.0 / sum
	}

	return Verdict{
		Best:       v.gmms[best].Name,
		Score:      max,
		Rejected:   v.cfg.RejectNames[v.gmms[best].Name],
		Confidence: confidence,
	}, true
}

// Reset clears accumulated scores for the next utterance, reusing the
// same GMM set and evaluator.
func (v *Verifier) Reset() {
	for i := range v.cumulative {
		v.cumulative[i] = 0
	}
	v.frame = 0
	v.ev.Reset()
}
