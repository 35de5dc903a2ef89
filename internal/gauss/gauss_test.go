package gauss

import (
	"context"
	"math"
	"testing"
)

func gaussAt(mean float64, dims int) Gaussian {
	m := make([]float64, dims)
	iv := make([]float64, dims)
	for i := range m {
		m[i] = mean
		iv[i] = 1.0
	}
	return Gaussian{Mean: m, InvVar: iv, GConst: 0}
}

func TestLogProb_PeaksAtMean(t *testing.T) {
	g := gaussAt(0, 2)
	atMean := g.LogProb([]float64{0, 0})
	off := g.LogProb([]float64{1, 1})
	if atMean <= off {
		t.Errorf("score at mean (%v) should exceed off-mean score (%v)", atMean, off)
	}
}

func TestEvaluate_ModeNone_ComputesAllAndSorts(t *testing.T) {
	gaussians := []Gaussian{gaussAt(5, 1), gaussAt(0, 1), gaussAt(1, 1)}
	e := NewEvaluator(ModeNone, 2, 0)
	res := e.Evaluate(0, 0, []float64{0}, gaussians, nil)
	if len(res.TopK) != 2 {
		t.Fatalf("got %d top-K entries; want 2", len(res.TopK))
	}
	if res.TopK[0].Score < res.TopK[1].Score {
		t.Errorf("top-K not sorted descending: %v", res.TopK)
	}
	// The Gaussian centered at 0 should win against the one centered at 1 or 5.
	if res.TopK[0].ID != 1 {
		t.Errorf("best id = %d; want 1 (the Gaussian centered at the input)", res.TopK[0].ID)
	}
}

func TestEvaluate_CachePerStateFrame(t *testing.T) {
	gaussians := []Gaussian{gaussAt(0, 1)}
	e := NewEvaluator(ModeNone, 1, 0)
	r1 := e.Evaluate(7, 3, []float64{0.5}, gaussians, nil)
	// Mutate the backing slice; a cached result must not reflect this.
	gaussians[0].Mean[0] = 99
	r2 := e.Evaluate(7, 3, []float64{0.5}, gaussians, nil)
	if r1.Output != r2.Output {
		t.Errorf("cached result changed: %v vs %v", r1.Output, r2.Output)
	}
}

func TestEvaluate_ModeSafe_MatchesExhaustiveTopK(t *testing.T) {
	gaussians := []Gaussian{gaussAt(-3, 1), gaussAt(0, 1), gaussAt(2, 1), gaussAt(10, 1)}
	vec := []float64{0.2}

	exhaustive := NewEvaluator(ModeNone, 2, 0)
	want := exhaustive.Evaluate(0, 0, vec, gaussians, nil)

	safe := NewEvaluator(ModeSafe, 2, 0)
	got := safe.Evaluate(0, 0, vec, gaussians, nil)

	if math.Abs(want.Output-got.Output) > 1e-9 {
		t.Errorf("safe output = %v; want %v", got.Output, want.Output)
	}
	if len(got.TopK) != len(want.TopK) {
		t.Fatalf("safe topK len = %d; want %d", len(got.TopK), len(want.TopK))
	}
	for i := range want.TopK {
		if want.TopK[i].ID != got.TopK[i].ID {
			t.Errorf("topK[%d].ID = %d; want %d", i, got.TopK[i].ID, want.TopK[i].ID)
		}
	}
}

func TestEvaluate_ModeBeam_SeedsFromPreviousFrame(t *testing.T) {
	gaussians := []Gaussian{gaussAt(-3, 1), gaussAt(0, 1), gaussAt(2, 1), gaussAt(10, 1)}
	e := NewEvaluator(ModeBeam, 2, 0)

	r0 := e.Evaluate(1, 0, []float64{0.1}, gaussians, nil)
	if len(r0.TopK) == 0 {
		t.Fatal("expected a non-empty top-K on the seed frame")
	}
	r1 := e.Evaluate(1, 1, []float64{0.1}, gaussians, nil)
	if len(r1.TopK) == 0 {
		t.Fatal("expected a non-empty top-K on the second frame")
	}
}

func TestEvaluate_ModeHeuristic_FallsBackWithoutHistory(t *testing.T) {
	gaussians := []Gaussian{gaussAt(-3, 1), gaussAt(0, 1), gaussAt(2, 1)}
	e := NewEvaluator(ModeHeuristic, 2, 1)
	res := e.Evaluate(0, 0, []float64{0}, gaussians, nil)
	if len(res.TopK) == 0 {
		t.Fatal("expected a non-empty result on the first frame (no history to seed from)")
	}
}

func TestEvaluate_ModeHeuristic_RestrictsToWindow(t *testing.T) {
	gaussians := make([]Gaussian, 10)
	for i := range gaussians {
		gaussians[i] = gaussAt(float64(i), 1)
	}
	e := NewEvaluator(ModeHeuristic, 1, 1)

	e.Evaluate(0, 0, []float64{9}, gaussians, nil) // best id ~9, seeds history
	res := e.Evaluate(0, 1, []float64{9}, gaussians, nil)
	if len(res.TopK) == 0 {
		t.Fatal("expected a non-empty result on the second frame")
	}
	if res.TopK[0].ID < 8 {
		t.Errorf("heuristic mode drifted outside its window: best id = %d", res.TopK[0].ID)
	}
}

func TestCombineMixture_WeightsShiftBestComponent(t *testing.T) {
	topK := []ScoredGaussian{{ID: 0, Score: -1}, {ID: 1, Score: -1}}
	even := combineMixture(topK, []float64{0, 0})
	skewed := combineMixture(topK, []float64{0, -100})
	if skewed >= even {
		t.Errorf("down-weighting component 1 should lower the combined score: skewed=%v even=%v", skewed, even)
	}
}

func TestCombineMixture_Empty(t *testing.T) {
	if out := combineMixture(nil, nil); !math.IsInf(out, -1) {
		t.Errorf("combineMixture(nil) = %v; want -Inf", out)
	}
}

func TestEvaluateFrame_ScoresAllStates(t *testing.T) {
	e := NewEvaluator(ModeNone, 2, 0)
	states := []StateInput{
		{State: 0, Gaussians: []Gaussian{gaussAt(0, 1)}},
		{State: 1, Gaussians: []Gaussian{gaussAt(5, 1)}},
		{State: 2, Gaussians: []Gaussian{gaussAt(-5, 1)}},
	}
	out, err := e.EvaluateFrame(context.Background(), 0, []float64{0}, states)
	if err != nil {
		t.Fatalf("EvaluateFrame: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d results; want 3", len(out))
	}
	if out[0].Output <= out[1].Output {
		t.Errorf("state 0 (centered at input) should score higher than state 1: %v vs %v", out[0].Output, out[1].Output)
	}
}

func TestReset_ClearsCacheAndHistory(t *testing.T) {
	gaussians := []Gaussian{gaussAt(0, 1)}
	e := NewEvaluator(ModeBeam, 1, 0)
	e.Evaluate(0, 0, []float64{0}, gaussians, nil)
	e.Reset()
	if len(e.cache) != 0 || len(e.history) != 0 {
		t.Error("Reset did not clear cache/history")
	}
}
