package audio

import (
	"math"
	"testing"
)

func TestPeakNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		wantPeak float32
	}{
		{
			name:     "scales half-amplitude signal to 1.0",
			input:    []float32{0.0, 0.5, -0.25, 0.5},
			wantPeak: 1.0,
		},
		{
			name:     "scales quiet signal",
			input:    []float32{0.1, -0.1, 0.05},
			wantPeak: 1.0,
		},
		{
			name:     "already normalized signal unchanged",
			input:    []float32{0.0, 1.0, -0.5},
			wantPeak: 1.0,
		},
		{
			name:     "silence remains silence",
			input:    []float32{0.0, 0.0, 0.0},
			wantPeak: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, len(tt.input))
			copy(in, tt.input)

			got := PeakNormalize(in)
			peak := peakOf(got)

			if tt.wantPeak == 0.0 {
				if peak != 0.0 {
					t.Errorf("expected silence, got peak %f", peak)
				}
				return
			}

			if math.Abs(float64(peak-tt.wantPeak)) > 1e-6 {
				t.Errorf("peak = %f, want %f", peak, tt.wantPeak)
			}
		})
	}
}

func TestDCBlock(t *testing.T) {
	const sr = 16000
	const n = sr

	t.Run("removes DC offset", func(t *testing.T) {
		input := make([]float32, n)
		for i := range input {
			input[i] = 0.5
		}

		got := DCBlock(input)

		mean := meanOf(got)
		if math.Abs(float64(mean)) > 1e-6 {
			t.Errorf("mean after DC block = %f, want near 0", mean)
		}
	})

	t.Run("preserves relative shape", func(t *testing.T) {
		input := []float32{1.0, 2.0, 3.0, 4.0, 5.0}
		got := DCBlock(input)
		for i := 1; i < len(got); i++ {
			if got[i] <= got[i-1] {
				t.Fatalf("expected monotonic increase at %d", i)
			}
		}
	})

	t.Run("empty input returns empty", func(t *testing.T) {
		got := DCBlock(nil)
		if len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})
}

func TestComputeLevel(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  int
	}{
		{"silence", []float32{0, 0, 0}, 0},
		{"full scale", []float32{1.0, -1.0, 0.5}, 32767},
		{"half scale", []float32{0.5, -0.25}, 16383},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLevel(tt.input)
			if got != tt.want {
				t.Errorf("ComputeLevel(%v) = %d; want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestComputeZeroCross(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  int
	}{
		{"no crossing", []float32{0.1, 0.2, 0.3}, 0},
		{"one crossing", []float32{0.1, -0.1}, 1},
		{"alternating", []float32{0.1, -0.1, 0.1, -0.1}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeZeroCross(tt.input)
			if got != tt.want {
				t.Errorf("ComputeZeroCross(%v) = %d; want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestRMSLevel(t *testing.T) {
	t.Run("silence is -Inf", func(t *testing.T) {
		got := RMSLevel([]float32{0, 0, 0})
		if !math.IsInf(got, -1) {
			t.Errorf("RMSLevel(silence) = %f; want -Inf", got)
		}
	})

	t.Run("full scale sine is near 0 dB at peak sample", func(t *testing.T) {
		got := RMSLevel([]float32{1.0, -1.0, 1.0, -1.0})
		if math.Abs(got) > 1e-6 {
			t.Errorf("RMSLevel = %f; want ~0", got)
		}
	})
}

// Test helpers

func peakOf(s []float32) float32 {
	var peak float32
	for _, v := range s {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}

	return peak
}

func meanOf(s []float32) float32 {
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}

	return float32(sum / float64(len(s)))
}
