package feat

// FeatureVector is one frame's complete feature output: static cepstra
// (plus optional c0/energy), delta, and acceleration coefficients.
type FeatureVector struct {
	Static []float64
	Delta  []float64
	Accel  []float64
}

// Flat concatenates the three components in the conventional
// static|delta|accel layout the Gaussian evaluator expects.
func (f FeatureVector) Flat() []float64 {
	out := make([]float64, 0, len(f.Static)+len(f.Delta)+len(f.Accel))
	out = append(out, f.Static...)
	out = append(out, f.Delta...)
	out = append(out, f.Accel...)
	return out
}

func (f FeatureVector) Dim() int {
	return len(f.Static) + len(f.Delta) + len(f.Accel)
}

type pendingEntry struct {
	static []float64
	delta  []float64
}

// Pipeline is the C1/C2 front end: per-frame MFCC extraction feeding a
// delta cyclic buffer, an acceleration cyclic buffer, and online MAP-CMN.
// ProcessFragment accepts raw samples as they arrive (on-line, fragment at
// a time) and yields every feature vector that becomes available; Flush
// drains the trailing frames still held by the delta/accel windows at
// utterance end. Processing an entire utterance in one ProcessFragment
// call followed by Flush yields bit-identical vectors to feeding it one
// fragment at a time (the feature-pipeline flush-equivalence property).
type Pipeline struct {
	cfg      Config
	ex       *extractor
	deltaBuf *DeltaBuf
	accelBuf *DeltaBuf
	cmn      *CMN

	buf []float64

	pendingStatic []([]float64)
	pendingPair   []pendingEntry
}

func NewPipeline(cfg Config, cmnMapWeight float64) *Pipeline {
	dim := cfg.baseDim()
	return &Pipeline{
		cfg:      cfg,
		ex:       newExtractor(cfg),
		deltaBuf: NewDeltaBuf(dim, cfg.DeltaWindow),
		accelBuf: NewDeltaBuf(dim, cfg.AccelWindow),
		cmn:      NewCMN(dim, cmnMapWeight),
	}
}

// stripAbsEnergy removes the final vector's absolute-energy element, per
// spec.md §4.1 step 5. It runs after delta/accel concatenation, so
// delta-energy and accel-energy (which still depend on the absolute
// energy stream feeding the cyclic buffers) are unaffected.
func (p *Pipeline) stripAbsEnergy(fv FeatureVector) FeatureVector {
	idx := p.cfg.absEnergyIndex()
	if idx < 0 {
		return fv
	}
	static := make([]float64, 0, len(fv.Static)-1)
	static = append(static, fv.Static[:idx]...)
	static = append(static, fv.Static[idx+1:]...)
	fv.Static = static
	return fv
}

// CMN exposes the pipeline's cepstral mean tracker so callers can load an
// initial mean before the first utterance or persist it after the last.
func (p *Pipeline) CMN() *CMN { return p.cmn }

// Latency returns the combined delta+accel window latency, in feature
// vectors: the number of frames an utterance must produce before the
// pipeline emits its first vector. Callers compare an utterance's emitted
// vector count against this to detect input too short to ever fill the
// delta/accel cyclic buffers, per spec.md §4.1.
func (p *Pipeline) Latency() int {
	return p.cfg.DeltaWindow + p.cfg.AccelWindow
}

// Begin resets all per-utterance state. Call once before each segment's
// first ProcessFragment call.
func (p *Pipeline) Begin() {
	p.buf = p.buf[:0]
	p.deltaBuf.Reset()
	p.accelBuf.Reset()
	p.pendingStatic = nil
	p.pendingPair = nil
	p.cmn.Prepare()
}

// ProcessFragment appends raw PCM16 samples and returns every feature
// vector that became available as a result, in order.
func (p *Pipeline) ProcessFragment(samples []int16) []FeatureVector {
	for _, s := range samples {
		p.buf = append(p.buf, float64(s)/32768.0)
	}

	frameSize := p.cfg.frameSize()
	frameShift := p.cfg.frameShift()

	var out []FeatureVector
	for len(p.buf) >= frameSize {
		static := p.ex.computeFrame(p.buf)
		p.cmn.Apply(static)

		if fv, ok := p.step(static); ok {
			out = append(out, p.stripAbsEnergy(fv))
		}

		if len(p.buf) >= frameShift {
			p.buf = p.buf[frameShift:]
		} else {
			p.buf = p.buf[:0]
		}
	}
	return out
}

func (p *Pipeline) step(static []float64) (FeatureVector, bool) {
	p.pendingStatic = append(p.pendingStatic, static)

	delta, ok := p.deltaBuf.Proceed(static)
	if !ok {
		return FeatureVector{}, false
	}
	matchedStatic := p.pendingStatic[0]
	p.pendingStatic = p.pendingStatic[1:]

	accel, ok2 := p.accelBuf.Proceed(delta)
	if !ok2 {
		p.pendingPair = append(p.pendingPair, pendingEntry{static: matchedStatic, delta: delta})
		return FeatureVector{}, false
	}
	return FeatureVector{Static: matchedStatic, Delta: delta, Accel: accel}, true
}

// Flush drains every frame still held by the delta and acceleration
// windows, in original frame order, and marks the current utterance's
// accumulated mean ready for MAP-CMN of the next one.
func (p *Pipeline) Flush() []FeatureVector {
	var out []FeatureVector

	for {
		delta, ok := p.deltaBuf.Flush()
		if !ok {
			break
		}
		matchedStatic := p.pendingStatic[0]
		p.pendingStatic = p.pendingStatic[1:]

		accel, ok2 := p.accelBuf.Proceed(delta)
		if ok2 {
			out = append(out, p.stripAbsEnergy(FeatureVector{Static: matchedStatic, Delta: delta, Accel: accel}))
		} else {
			p.pendingPair = append(p.pendingPair, pendingEntry{static: matchedStatic, delta: delta})
		}
	}

	for {
		accel, ok := p.accelBuf.Flush()
		if !ok {
			break
		}
		pair := p.pendingPair[0]
		p.pendingPair = p.pendingPair[1:]
		out = append(out, p.stripAbsEnergy(FeatureVector{Static: pair.static, Delta: pair.delta, Accel: accel}))
	}

	p.cmn.Update()
	return out
}
