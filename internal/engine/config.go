package engine

import (
	"github.com/example/go-recog/internal/config"
	"github.com/example/go-recog/internal/gauss"
	"github.com/example/go-recog/internal/search"
	"github.com/example/go-recog/internal/stack"
	"github.com/example/go-recog/internal/verify"
)

// ConfigFromDecoder translates the CLI/file configuration surface of
// spec.md §6 into the tunables Recog's wired components need.
// varianceInverted comes from the loaded acoustic model's own header
// (acmodel.HMMSet.VarianceInversed), not from the CLI, since it describes
// the model file rather than a recognition policy. rejectGMMs names the
// GMMs whose win marks an utterance rejected (spec.md §4.10).
func ConfigFromDecoder(cfg config.Config, varianceInverted bool, rejectGMMs map[string]bool) Config {
	return Config{
		Search: search.Config{
			BeamWidth:      cfg.Search.Pass1BeamWidth,
			GaussMode:      gauss.Mode(cfg.Search.GPrune),
			GaussTopK:      cfg.Search.TMixTopN,
			VarianceInvert: varianceInverted,
		},
		Decoder: stack.Config{
			MaxStackDepth: cfg.Search.StackSize,
			ScanBeamThres: cfg.Search.ScanBeamThres,
			MaxSentences:  cfg.Search.Pass2SentenceCount,
			MaxPops:       cfg.Search.OverflowPopLimit,
			LookupRange:   cfg.Search.LookupRange,
		},
		Verify: verify.Config{
			VarianceInverted: varianceInverted,
			Alpha:            1.0,
			RejectNames:      rejectGMMs,
		},
		ShortPauseMinFrames: cfg.VAD.SPFrameDur,
		Align:               false,
	}
}
