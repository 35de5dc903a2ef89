package feat

// DeltaBuf is a cyclic buffer that computes regression-based delta
// coefficients over a sliding window, ported from the original engine's
// WMP_deltabuf_* routines (wav2mfcc-pipe.c). It is used twice in the
// pipeline: once to compute delta coefficients from static MFCC vectors,
// and again to compute acceleration coefficients from the delta stream.
type DeltaBuf struct {
	vecLen int
	win    int
	length int // win*2 + 1
	store  []([]float64)
	isOn   []bool
	b      float64 // regression normalisation constant
	pos    int
}

func NewDeltaBuf(vecLen, window int) *DeltaBuf {
	length := window*2 + 1
	db := &DeltaBuf{
		vecLen: vecLen,
		win:    window,
		length: length,
		store:  make([][]float64, length),
		isOn:   make([]bool, length),
	}
	for i := range db.store {
		db.store[i] = make([]float64, vecLen)
	}
	b := 0.0
	for i := 1; i <= window; i++ {
		b += float64(i * i)
	}
	db.b = b * 2
	return db
}

// Reset clears the cyclic buffer for the start of a new utterance.
func (db *DeltaBuf) Reset() {
	db.pos = 0
	for i := range db.isOn {
		db.isOn[i] = false
	}
}

func (db *DeltaBuf) mod(i int) int {
	for i < 0 {
		i += db.length
	}
	for i >= db.length {
		i -= db.length
	}
	return i
}

func (db *DeltaBuf) computeAt(cur int) []float64 {
	out := make([]float64, db.vecLen)
	for n := 0; n < db.vecLen; n++ {
		sum := 0.0
		lastLeft, lastRight := cur, cur
		for theta := 1; theta <= db.win; theta++ {
			p := db.mod(cur - theta)
			var a1 float64
			if db.isOn[p] {
				a1 = db.store[p][n]
				lastLeft = p
			} else {
				a1 = db.store[lastLeft][n]
			}
			p = db.mod(cur + theta)
			var a2 float64
			if db.isOn[p] {
				a2 = db.store[p][n]
				lastRight = p
			} else {
				a2 = db.store[lastRight][n]
			}
			sum += float64(theta) * (a2 - a1)
		}
		out[n] = sum / db.b
	}
	return out
}

// Proceed stores a new vector and, once the cyclic window is filled,
// returns the delta coefficients for the frame that is now centred in the
// window along with true. It returns (nil, false) while the window is
// still filling (stream start latency).
func (db *DeltaBuf) Proceed(vec []float64) ([]float64, bool) {
	copy(db.store[db.pos], vec)
	db.isOn[db.pos] = true

	cur := db.mod(db.pos - db.win)
	var out []float64
	ok := db.isOn[cur]
	if ok {
		out = db.computeAt(cur)
	}

	db.pos = db.mod(db.pos + 1)
	return out, ok
}

// Flush drains the remaining buffered frames at utterance end, matching
// WMP_deltabuf_flush: call once per remaining frame until it returns false.
func (db *DeltaBuf) Flush() ([]float64, bool) {
	db.isOn[db.pos] = false

	cur := db.mod(db.pos - db.win)
	var out []float64
	ok := db.isOn[cur]
	if ok {
		out = db.computeAt(cur)
	}

	db.pos = db.mod(db.pos + 1)
	return out, ok
}
