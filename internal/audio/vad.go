package audio

import "github.com/example/go-recog/internal/config"

// vadWindowMS is the analysis window the level-and-zerocross trigger
// evaluates, matching the original engine's adin_cut default frame size
// for speech detection (distinct from the MFCC frame size).
const vadWindowMS = 20

// VADParams carries the level/zero-cross trigger thresholds and margins of
// config.VADConfig translated into sample/window counts for a concrete
// sample rate.
type VADParams struct {
	LevelThreshold     int
	ZeroCrossThreshold int
	WindowSamples      int
	HeadMarginSamples  int // head-margin ring buffer capacity, in samples
	TailMarginWindows  int // consecutive silent windows tolerated before declaring offset
}

// VADParamsFromConfig derives VADParams from the CLI/file -lv/-zc/
// -headmargin/-tailmargin surface (spec.md §6) for a given capture sample
// rate.
func VADParamsFromConfig(vad config.VADConfig, sampleRate int) VADParams {
	windowSamples := sampleRate * vadWindowMS / 1000
	if windowSamples <= 0 {
		windowSamples = 1
	}
	headSamples := vad.HeadMarginMS * sampleRate / 1000
	tailWindows := (vad.TailMarginMS * sampleRate / 1000) / windowSamples

	return VADParams{
		LevelThreshold:     vad.LevelThreshold,
		ZeroCrossThreshold: vad.ZeroCrossThreshold,
		WindowSamples:      windowSamples,
		HeadMarginSamples:  headSamples,
		TailMarginWindows:  tailWindows,
	}
}

// VADGate implements the original engine's level-and-zerocross speech
// trigger (adin_cut): a continuous PCM16 stream is classified window by
// window, with HeadMarginSamples of pre-trigger audio retained in a
// cyclic buffer so utterance onset is never clipped, and the trigger held
// open through TailMarginWindows of post-trigger silence so the
// segmenter sees a natural offset rather than a hard cut.
type VADGate struct {
	params VADParams
	head   *CycleBuffer
	window []float32

	speech    bool
	silentRun int
}

func NewVADGate(params VADParams) *VADGate {
	headCap := params.HeadMarginSamples
	if headCap <= 0 {
		headCap = 1
	}
	return &VADGate{params: params, head: NewCycleBuffer(headCap)}
}

// Speech reports whether the gate currently considers the stream to be in
// a triggered (speech) span.
func (g *VADGate) Speech() bool { return g.speech }

// Push classifies one chunk of incoming PCM16 samples and returns the
// samples that should be forwarded to the decoder this call. Audio
// preceding trigger is absorbed into the head-margin ring; once the
// window's peak level and zero-crossing count both clear their
// thresholds, the buffered margin is flushed ahead of live samples.
func (g *VADGate) Push(samples []int16) []int16 {
	var out []int16
	for _, s := range samples {
		if g.speech {
			out = append(out, s)
		} else {
			g.head.Push(s)
		}

		g.window = append(g.window, float32(s)/32768.0)
		if len(g.window) < g.params.WindowSamples {
			continue
		}
		blocked := DCBlock(g.window)
		active := ComputeLevel(blocked) >= g.params.LevelThreshold &&
			ComputeZeroCross(blocked) <= g.params.ZeroCrossThreshold
		g.window = g.window[:0]

		switch {
		case active:
			g.silentRun = 0
			if !g.speech {
				g.speech = true
				out = append(out, g.head.Drain()...)
			}
		case g.speech:
			g.silentRun++
			if g.silentRun > g.params.TailMarginWindows {
				g.speech = false
			}
		}
	}
	return out
}
