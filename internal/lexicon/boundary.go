package lexicon

import (
	"math"
	"sort"
)

// IWCD1Mode selects how cross-word triphone context is summarised at
// Pass 1 for a lexicon-tree boundary state, per spec.md §4.4 point 2.
// Exact cross-word triphones are re-applied when a word hypothesis is
// expanded during Pass 2, so these modes only affect Pass-1 pruning.
type IWCD1Mode string

const (
	IWCD1Max  IWCD1Mode = "max"
	IWCD1Avg  IWCD1Mode = "avg"
	IWCD1Best IWCD1Mode = "best"
)

// SummarizeBoundary combines the per-left-context candidate scores for a
// cross-word boundary state into a single Pass-1 approximation score.
// bestN is only consulted for IWCD1Best.
func SummarizeBoundary(mode IWCD1Mode, scores []float64, bestN int) float64 {
	if len(scores) == 0 {
		return math.Inf(-1)
	}
	switch mode {
	case IWCD1Avg:
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	case IWCD1Best:
		sorted := append([]float64{}, scores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		n := bestN
		if n <= 0 || n > len(sorted) {
			n = len(sorted)
		}
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += sorted[i]
		}
		return sum / float64(n)
	default: // IWCD1Max and any unrecognised mode
		best := math.Inf(-1)
		for _, s := range scores {
			if s > best {
				best = s
			}
		}
		return best
	}
}
