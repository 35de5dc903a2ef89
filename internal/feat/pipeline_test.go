package feat

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func synthSamples(n int, freqHz float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		v := 0.3 * math.Sin(2*math.Pi*freqHz*float64(i)/16000)
		out[i] = int16(v * 32767)
	}
	return out
}

func TestPipeline_ProcessFragment_ProducesFeatureVectors(t *testing.T) {
	cfg := DefaultConfig(16000)
	p := NewPipeline(cfg, 100.0)
	p.Begin()

	samples := synthSamples(16000, 200) // 1 second
	out := p.ProcessFragment(samples)
	out = append(out, p.Flush()...)

	if len(out) == 0 {
		t.Fatal("expected at least one feature vector")
	}
	for i, fv := range out {
		if fv.Dim() != cfg.baseDim()*3 {
			t.Errorf("frame %d: dim = %d; want %d", i, fv.Dim(), cfg.baseDim()*3)
		}
		for _, v := range fv.Flat() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("frame %d has non-finite value", i)
			}
		}
	}
}

func TestPipeline_AbsESup_StripsEnergyFromStaticOnly(t *testing.T) {
	cfg := DefaultConfig(16000)
	cfg.AbsESup = true
	p := NewPipeline(cfg, 100.0)
	p.Begin()

	samples := synthSamples(16000, 200) // 1 second
	out := p.ProcessFragment(samples)
	out = append(out, p.Flush()...)

	if len(out) == 0 {
		t.Fatal("expected at least one feature vector")
	}

	wantStaticDim := cfg.baseDim() - 1
	wantTotalDim := wantStaticDim + cfg.baseDim()*2
	for i, fv := range out {
		if len(fv.Static) != wantStaticDim {
			t.Errorf("frame %d: static dim = %d; want %d", i, len(fv.Static), wantStaticDim)
		}
		if len(fv.Delta) != cfg.baseDim() {
			t.Errorf("frame %d: delta dim = %d; want %d (energy stays in delta/accel)", i, len(fv.Delta), cfg.baseDim())
		}
		if fv.Dim() != wantTotalDim {
			t.Errorf("frame %d: dim = %d; want %d", i, fv.Dim(), wantTotalDim)
		}
	}
}

func TestPipeline_AbsESup_NoOpWithoutEnergy(t *testing.T) {
	cfg := DefaultConfig(16000)
	cfg.UseEnergy = false
	cfg.AbsESup = true
	p := NewPipeline(cfg, 100.0)
	p.Begin()

	samples := synthSamples(16000, 200)
	out := p.ProcessFragment(samples)
	out = append(out, p.Flush()...)

	if len(out) == 0 {
		t.Fatal("expected at least one feature vector")
	}
	if len(out[0].Static) != cfg.baseDim() {
		t.Errorf("static dim = %d; want %d (AbsESup is a no-op without UseEnergy)", len(out[0].Static), cfg.baseDim())
	}
}

// TestPipeline_FlushEquivalence checks the feature-pipeline flush
// equivalence property: processing an entire utterance's samples through
// one ProcessFragment call plus a final Flush produces the same feature
// vectors as splitting the same samples across an arbitrary sequence of
// ProcessFragment calls (plus Flush at the end).
func TestPipeline_FlushEquivalence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(400, 8000).Draw(rt, "n")
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(rapid.IntRange(-5000, 5000).Draw(rt, "s"))
		}

		cfg := DefaultConfig(16000)

		whole := NewPipeline(cfg, 100.0)
		whole.Begin()
		wholeOut := whole.ProcessFragment(samples)
		wholeOut = append(wholeOut, whole.Flush()...)

		chunked := NewPipeline(cfg, 100.0)
		chunked.Begin()
		var chunkedOut []FeatureVector
		pos := 0
		for pos < len(samples) {
			step := rapid.IntRange(1, 400).Draw(rt, "step")
			end := pos + step
			if end > len(samples) {
				end = len(samples)
			}
			chunkedOut = append(chunkedOut, chunked.ProcessFragment(samples[pos:end])...)
			pos = end
		}
		chunkedOut = append(chunkedOut, chunked.Flush()...)

		if len(wholeOut) != len(chunkedOut) {
			rt.Fatalf("vector count differs: whole=%d chunked=%d", len(wholeOut), len(chunkedOut))
		}
		for i := range wholeOut {
			a, b := wholeOut[i].Flat(), chunkedOut[i].Flat()
			for j := range a {
				if math.Abs(a[j]-b[j]) > 1e-6 {
					rt.Fatalf("frame %d component %d differs: %v vs %v", i, j, a[j], b[j])
				}
			}
		}
	})
}
