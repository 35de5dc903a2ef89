package feat

import (
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
)

// cpMax caps the number of past utterances' frame counts MAP-CMN will mix
// into the next initial mean, matching the original CPMAX constant.
const cpMax = 10 * 60 * 100 // ~10 minutes of 10ms frames, a generous ceiling

// cpStep is the clist growth increment, matching CPSTEP in the original.
const cpStep = 8

type cmean struct {
	sum      []float64
	frameNum int
}

// CMN implements online MAP-weighted cepstral mean normalisation, ported
// from CMN_realtime/CMN_realtime_update in wav2mfcc-pipe.c: each frame is
// normalised against the running mean of the current utterance blended
// with a MAP-weighted prior mean carried over from previous utterances.
type CMN struct {
	dim     int
	weight  float64
	nowSum  []float64
	nowN    int
	initial []float64
	hasInit bool
	clist   []cmean
}

func NewCMN(dim int, weight float64) *CMN {
	return &CMN{
		dim:     dim,
		weight:  weight,
		nowSum:  make([]float64, dim),
		initial: make([]float64, dim),
	}
}

// Prepare resets the per-utterance accumulator; call at the start of each
// segment.
func (c *CMN) Prepare() {
	for i := range c.nowSum {
		c.nowSum[i] = 0
	}
	c.nowN = 0
}

// Apply normalises mfcc in place against the running mean, accumulating it
// into the running sum first.
func (c *CMN) Apply(mfcc []float64) {
	c.nowN++
	floats.Add(c.nowSum, mfcc)

	if c.hasInit {
		denom := float64(c.nowN) + c.weight
		for d := range mfcc {
			x := c.nowSum[d] + c.weight*c.initial[d]
			mfcc[d] -= x / denom
		}
	} else {
		for d := range mfcc {
			mfcc[d] -= c.nowSum[d] / float64(c.nowN)
		}
	}
}

// Update folds the just-finished utterance into the MAP prior for the next
// one, mirroring CMN_realtime_update's clist shift-and-cap behaviour.
// It is a no-op (matching the original's early return) if Apply was never
// called since the last Prepare.
func (c *CMN) Update() {
	if c.nowN == 0 {
		return
	}

	newInit := make([]float64, c.dim)
	copy(newInit, c.nowSum)
	frames := c.nowN
	for _, entry := range c.clist {
		floats.Add(newInit, entry.sum)
		frames += entry.frameNum
		if frames >= cpMax {
			break
		}
	}
	floats.Scale(1.0/float64(frames), newInit)
	c.initial = newInit
	c.hasInit = true

	prepend := cmean{sum: append([]float64(nil), c.nowSum...), frameNum: c.nowN}
	c.clist = append([]cmean{prepend}, c.clist...)
	if len(c.clist) > cpStep {
		c.clist = c.clist[:cpStep]
	}
}

// LoadFromFile loads a previously saved initial mean vector: a little-endian
// int32 dimension header followed by dim float32 values.
func (c *CMN) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cmn: open %s: %w", path, err)
	}
	defer f.Close()

	var dim int32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("cmn: read header: %w", err)
	}
	if int(dim) != c.dim {
		return fmt.Errorf("cmn: dimension mismatch: file has %d, want %d", dim, c.dim)
	}

	raw := make([]float32, dim)
	if err := binary.Read(f, binary.LittleEndian, &raw); err != nil {
		return fmt.Errorf("cmn: read body: %w", err)
	}
	for i, v := range raw {
		c.initial[i] = float64(v)
	}
	c.hasInit = true
	return nil
}

// SaveToFile persists the current initial mean vector in the same format
// LoadFromFile expects.
func (c *CMN) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cmn: create %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, int32(c.dim)); err != nil {
		return fmt.Errorf("cmn: write header: %w", err)
	}
	raw := make([]float32, c.dim)
	for i, v := range c.initial {
		raw[i] = float32(v)
	}
	if err := binary.Write(f, binary.LittleEndian, raw); err != nil {
		return fmt.Errorf("cmn: write body: %w", err)
	}
	return nil
}
