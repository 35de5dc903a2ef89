package lexicon

import (
	"math"
	"testing"
)

func TestSummarizeBoundary_Avg(t *testing.T) {
	got := SummarizeBoundary(IWCD1Avg, []float64{-1, -2, -3}, 0)
	want := -2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("avg = %v; want %v", got, want)
	}
}

func TestSummarizeBoundary_Max(t *testing.T) {
	got := SummarizeBoundary(IWCD1Max, []float64{-5, -1, -9}, 0)
	if got != -1 {
		t.Errorf("max = %v; want -1", got)
	}
}

func TestSummarizeBoundary_BestN(t *testing.T) {
	got := SummarizeBoundary(IWCD1Best, []float64{-5, -1, -2, -9}, 2)
	want := (-1.0 + -2.0) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("best-2 = %v; want %v", got, want)
	}
}

func TestSummarizeBoundary_BestN_ClampsToLength(t *testing.T) {
	got := SummarizeBoundary(IWCD1Best, []float64{-1, -2}, 10)
	want := -1.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("best clamped = %v; want %v", got, want)
	}
}

func TestSummarizeBoundary_Empty(t *testing.T) {
	got := SummarizeBoundary(IWCD1Avg, nil, 0)
	if !math.IsInf(got, -1) {
		t.Errorf("empty = %v; want -Inf", got)
	}
}
