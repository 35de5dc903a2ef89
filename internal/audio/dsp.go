package audio

import "math"

// ComputeLevel returns the peak absolute PCM16-scale amplitude of a frame,
// the quantity the original engine's adin_cut compares against -lv.
func ComputeLevel(samples []float32) int {
	peak := float32(0)
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return int(peak * 32767)
}

// ComputeZeroCross counts sign changes in a frame, the quantity compared
// against -zc for the level-and-zerocross speech/silence trigger.
func ComputeZeroCross(samples []float32) int {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	return crossings
}

// DCBlock removes the DC offset from samples using the mean of the frame,
// matching the per-frame DC removal the MFCC pipeline performs before
// pre-emphasis.
func DCBlock(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := float32(sum / float64(len(samples)))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s - mean
	}
	return out
}

// PeakNormalize scales samples so the peak amplitude reaches 1.0. Kept for
// debug WAV dumps of segmented utterances; the recognition path itself
// never rescales input audio.
func PeakNormalize(samples []float32) []float32 {
	peak := float32(0)
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}
	out := make([]float32, len(samples))
	scale := 1.0 / peak
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// RMSLevel returns the root-mean-square amplitude of a frame in dB relative
// to full scale, used for diagnostic logging only.
func RMSLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
