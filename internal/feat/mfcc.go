// Package feat implements the front-end feature pipeline: per-frame MFCC
// extraction (windowing, FFT, mel filterbank, DCT, liftering), delta/
// acceleration cyclic buffers, and online MAP-CMN.
package feat

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config mirrors the MFCC computation parameters named in spec.md §4.1:
// sampling rate, frame size/shift, pre-emphasis, filterbank size, cepstral
// dimension, and the energy/c0 inclusion flags.
type Config struct {
	SampleRate   int
	FrameSizeMS  float64
	FrameShiftMS float64
	PreEmphasis  float64
	NumFilters   int
	NumCeps      int // cepstral dimension, excluding energy/c0
	UseEnergy    bool
	UseC0        bool
	AbsESup      bool // strip the absolute energy element from the final vector, per spec.md §4.1 step 5
	CepLifter    float64
	DeltaWindow  int
	AccelWindow  int
	LowFreqHz    float64
	HighFreqHz   float64 // 0 means Nyquist
	RemoveDC     bool
}

func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:   sampleRate,
		FrameSizeMS:  25,
		FrameShiftMS: 10,
		PreEmphasis:  0.97,
		NumFilters:   24,
		NumCeps:      12,
		UseEnergy:    true,
		UseC0:        false,
		CepLifter:    22,
		DeltaWindow:  2,
		AccelWindow:  2,
		LowFreqHz:    0,
		HighFreqHz:   0,
		RemoveDC:     true,
	}
}

func (c Config) frameSize() int  { return int(c.FrameSizeMS * float64(c.SampleRate) / 1000) }
func (c Config) frameShift() int { return int(c.FrameShiftMS * float64(c.SampleRate) / 1000) }

// baseDim is the static MFCC vector length before delta/accel are appended:
// NumCeps coefficients, plus c0 and/or log energy when enabled.
func (c Config) baseDim() int {
	d := c.NumCeps
	if c.UseC0 {
		d++
	}
	if c.UseEnergy {
		d++
	}
	return d
}

// absEnergyIndex returns the base vector's absolute-energy element index
// (energy is always appended last by computeFrame), or -1 if AbsESup does
// not apply (either energy is not in use, or the flag is off).
func (c Config) absEnergyIndex() int {
	if !c.AbsESup || !c.UseEnergy {
		return -1
	}
	return c.baseDim() - 1
}

// extractor holds the precomputed FFT plan, mel filterbank, and DCT matrix
// for a given Config; it is the per-frame computational core shared by
// Pipeline.
type extractor struct {
	cfg      Config
	fftSize  int
	fft      *fourier.FFT
	window   []float64
	filters  [][]float64 // [numFilters][fftSize/2+1]
	dctTable [][]float64 // [numCeps][numFilters]
}

func newExtractor(cfg Config) *extractor {
	frameSize := cfg.frameSize()
	fftSize := nextPow2(frameSize)

	high := cfg.HighFreqHz
	if high <= 0 {
		high = float64(cfg.SampleRate) / 2
	}

	e := &extractor{
		cfg:     cfg,
		fftSize: fftSize,
		fft:     fourier.NewFFT(fftSize),
		window:  hammingWindow(frameSize),
		filters: melFilterbank(cfg.NumFilters, fftSize, cfg.SampleRate, cfg.LowFreqHz, high),
	}
	e.dctTable = dctMatrix(cfg.NumCeps, cfg.NumFilters)
	return e
}

// computeFrame returns the base MFCC vector (cepstra, optionally c0 and/or
// log energy appended per cfg) for one windowed frame of raw samples.
// samples must have length >= cfg.frameSize(); extra samples are ignored.
func (e *extractor) computeFrame(samples []float64) []float64 {
	frameSize := e.cfg.frameSize()
	frame := make([]float64, frameSize)
	copy(frame, samples[:frameSize])

	if e.cfg.RemoveDC {
		frame = removeDC(frame)
	}

	rawEnergy := 0.0
	if e.cfg.UseEnergy {
		for _, v := range frame {
			rawEnergy += v * v
		}
	}

	preEmphasize(frame, e.cfg.PreEmphasis)

	for i, v := range frame {
		frame[i] = v * e.window[i]
	}

	padded := make([]float64, e.fftSize)
	copy(padded, frame)

	spectrum := e.fft.Coefficients(nil, padded)
	power := make([]float64, len(spectrum))
	for i, c := range spectrum {
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}

	melEnergies := make([]float64, e.cfg.NumFilters)
	for m, filt := range e.filters {
		sum := 0.0
		for k, w := range filt {
			if w == 0 {
				continue
			}
			sum += w * power[k]
		}
		if sum < 1e-10 {
			sum = 1e-10
		}
		melEnergies[m] = math.Log(sum)
	}

	cepstra := make([]float64, e.cfg.NumCeps)
	for n := 0; n < e.cfg.NumCeps; n++ {
		sum := 0.0
		row := e.dctTable[n]
		for m, w := range row {
			sum += w * melEnergies[m]
		}
		cepstra[n] = sum
	}
	liftered := lifter(cepstra, e.cfg.CepLifter)

	out := make([]float64, 0, e.cfg.baseDim())
	if e.cfg.UseC0 {
		c0 := 0.0
		for _, v := range melEnergies {
			c0 += v
		}
		c0 *= math.Sqrt(2.0 / float64(e.cfg.NumFilters))
		out = append(out, c0)
	}
	out = append(out, liftered...)
	if e.cfg.UseEnergy {
		if rawEnergy < 1e-10 {
			rawEnergy = 1e-10
		}
		out = append(out, math.Log(rawEnergy))
	}
	return out
}

func removeDC(frame []float64) []float64 {
	mean := 0.0
	for _, v := range frame {
		mean += v
	}
	mean /= float64(len(frame))
	out := make([]float64, len(frame))
	for i, v := range frame {
		out[i] = v - mean
	}
	return out
}

// preEmphasize applies y[n] = x[n] - k*x[n-1] in place, matching the
// original engine's pre-emphasis step (the first sample is unmodified,
// matching Julius's convention of using the frame's own first sample as
// the left context for the first coefficient).
func preEmphasize(frame []float64, k float64) {
	for i := len(frame) - 1; i > 0; i-- {
		frame[i] -= k * frame[i-1]
	}
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// melFilterbank builds numFilters triangular filters over the fftSize/2+1
// real-FFT bins spanning [lowFreq, highFreq], in the conventional
// equally-spaced-in-mel construction.
func melFilterbank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	numBins := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	points := make([]float64, numFilters+2)
	for i := range points {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1)
		points[i] = melToHz(mel)
	}

	binFreqs := make([]float64, numBins)
	for k := range binFreqs {
		binFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	filters := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		left, center, right := points[m], points[m+1], points[m+2]
		filt := make([]float64, numBins)
		for k, f := range binFreqs {
			switch {
			case f < left || f > right:
				filt[k] = 0
			case f <= center:
				if center == left {
					filt[k] = 0
				} else {
					filt[k] = (f - left) / (center - left)
				}
			default:
				if right == center {
					filt[k] = 0
				} else {
					filt[k] = (right - f) / (right - center)
				}
			}
		}
		filters[m] = filt
	}
	return filters
}

// dctMatrix builds the type-II DCT basis used to turn log mel-filterbank
// energies into cepstral coefficients.
func dctMatrix(numCeps, numFilters int) [][]float64 {
	table := make([][]float64, numCeps)
	scale := math.Sqrt(2.0 / float64(numFilters))
	for n := 0; n < numCeps; n++ {
		row := make([]float64, numFilters)
		for m := 0; m < numFilters; m++ {
			row[m] = scale * math.Cos(math.Pi*float64(n+1)/float64(numFilters)*(float64(m)+0.5))
		}
		table[n] = row
	}
	return table
}

// lifter applies the conventional sinusoidal cepstral liftering; a
// non-positive L leaves the cepstra unmodified.
func lifter(cepstra []float64, l float64) []float64 {
	if l <= 0 {
		return cepstra
	}
	out := make([]float64, len(cepstra))
	for i, c := range cepstra {
		out[i] = c * (1.0 + l/2.0*math.Sin(math.Pi*float64(i+1)/l))
	}
	return out
}
