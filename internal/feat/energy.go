package feat

// EnergyNormalizer rescales raw log energy against the maximum seen in the
// previous utterance, ported from energy_max_init/energy_max_prepare/
// energy_max_normalize in wav2mfcc-pipe.c. It is an alternative to plain
// log-energy for acoustic models trained on energy-normalized features and
// is off by default (Config.UseEnergy still controls whether energy is
// appended at all).
type EnergyNormalizer struct {
	max      float64
	maxLast  float64
	minLast  float64
	silFloor float64 // dB floor relative to max, e.g. 50.0
	scale    float64 // 1/escale from the original Value struct
}

func NewEnergyNormalizer(silFloorDB, scale float64) *EnergyNormalizer {
	return &EnergyNormalizer{max: 5.0, silFloor: silFloorDB, scale: scale}
}

// Prepare must be called once at the start of each utterance/segment.
func (e *EnergyNormalizer) Prepare() {
	e.maxLast = e.max
	const logTen = 2.302585092994046
	e.minLast = e.max - (e.silFloor*logTen)/10.0
	e.max = 0.0
}

// Normalize maps a raw log-energy value into the range expected by models
// trained on energy-normalized features, tracking the running max for the
// next utterance as a side effect.
func (e *EnergyNormalizer) Normalize(raw float64) float64 {
	if e.max < raw {
		e.max = raw
	}
	if raw < e.minLast {
		raw = e.minLast
	}
	return 1.0 - (e.maxLast-raw)*e.scale
}
