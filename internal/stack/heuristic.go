package stack

import (
	"math"

	"github.com/example/go-recog/internal/trellis"
)

// Heuristic gives the Pass-2 A★ search its backward score estimate h(t):
// an admissible-style proxy for "the best score attainable finishing the
// sentence from frame t onward", per spec.md §4.7's heuristic definition.
// Building an exact discount of the Pass-1 state-output and LM-factoring
// contributions (as Julius does) would need the same per-frame AM detail
// `internal/align` already re-derives for forced alignment; this instead
// takes the best cumulative trellis score at or after each frame as the
// estimate, which is looser but monotonically consistent for the bounded
// stack search here. Noted as a simplification rather than attributed to
// a specific source file.
type Heuristic struct {
	values []float64 // per frame, best cumulative atom score seen at or after that frame
}

// BuildHeuristic scans a finalized trellis from lastFrame back to 0.
func BuildHeuristic(tr *trellis.Trellis, lastFrame int) *Heuristic {
	vals := make([]float64, lastFrame+2)
	best := math.Inf(-1)
	for f := lastFrame; f >= 0; f-- {
		for _, a := range tr.AtomsInRange(f, f) {
			if a.Score > best {
				best = a.Score
			}
		}
		vals[f] = best
	}
	vals[lastFrame+1] = best
	return &Heuristic{values: vals}
}

// At returns the heuristic estimate for the given frame, clamped to the
// table's range.
func (h *Heuristic) At(frame int) float64 {
	if frame < 0 {
		frame = 0
	}
	if frame >= len(h.values) {
		frame = len(h.values) - 1
	}
	return h.values[frame]
}
