package acmodel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary container format. Section order follows read_binhmm.c's
// sequence: header, options, tying+mixture count, transitions, variances,
// densities, tied codebooks (if tied-mixture), states, physical HMMs.
// Fields are big-endian fixed-size values and NUL-terminated strings, as
// in the original; the magic strings themselves are this project's own
// (the real BINHMM_HEADER/_V2 constants live in a header file outside the
// retrieval pack, so there is no byte-for-byte magic to reproduce, and
// this engine has no need to read an existing Julius binhmm file).
const (
	magicV1 = "GORECOG.binhmm.1"
	magicV2 = "GORECOG.binhmm.2"

	flagVarInverse = 'I' // variances are stored pre-inverted
)

// ReadBinary parses a binary acoustic model container from r.
func ReadBinary(r io.Reader) (*HMMSet, error) {
	br := bufio.NewReader(r)
	h := NewHMMSet()

	varInverse, err := readHeader(br)
	if err != nil {
		return nil, fmt.Errorf("acmodel: header: %w", err)
	}
	h.VarianceInversed = varInverse

	if err := readOptions(br, &h.Options); err != nil {
		return nil, fmt.Errorf("acmodel: options: %w", err)
	}
	if err := readType(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: type: %w", err)
	}
	if err := readTransitions(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: transitions: %w", err)
	}
	if err := readVariances(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: variances: %w", err)
	}
	if err := readDensities(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: densities: %w", err)
	}
	if h.IsTiedMixture {
		if err := readCodebooks(br, h); err != nil {
			return nil, fmt.Errorf("acmodel: codebooks: %w", err)
		}
	}
	if err := readStates(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: states: %w", err)
	}
	if err := readPhysical(br, h); err != nil {
		return nil, fmt.Errorf("acmodel: physical HMMs: %w", err)
	}

	h.index()
	return h, nil
}

func readHeader(r io.Reader) (varInverse bool, err error) {
	magic, err := readCString(r)
	if err != nil {
		return false, err
	}
	switch magic {
	case magicV1:
		return false, nil
	case magicV2:
		var flag byte
		if err := binary.Read(r, binary.BigEndian, &flag); err != nil {
			return false, err
		}
		return flag == flagVarInverse, nil
	default:
		return false, fmt.Errorf("unrecognised header magic %q", magic)
	}
}

func readCString(r io.Reader) (string, error) {
	var buf []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}

func readInt16(r io.Reader) (int16, error) {
	var v int16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readFloat64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readOptions(r io.Reader, opt *Options) error {
	v, err := readInt16(r)
	if err != nil {
		return err
	}
	opt.StreamNum = v

	opt.StreamVecSizes = make([]int16, 50)
	for i := range opt.StreamVecSizes {
		v, err := readInt16(r)
		if err != nil {
			return err
		}
		opt.StreamVecSizes[i] = v
	}

	for _, dst := range []*int16{&opt.VecSize, &opt.CovType, &opt.DurType, &opt.ParamType} {
		v, err := readInt16(r)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func readType(r io.Reader, h *HMMSet) error {
	var tied byte
	if err := binary.Read(r, binary.BigEndian, &tied); err != nil {
		return err
	}
	h.IsTiedMixture = tied != 0
	n, err := readInt32(r)
	if err != nil {
		return err
	}
	h.MaxMixtureNum = int(n)
	return nil
}

func readTransitions(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.Transitions = make([]*Transition, count)
	for i := range h.Transitions {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		numStates, err := readInt16(r)
		if err != nil {
			return err
		}
		t := &Transition{Name: name, NumStates: int(numStates), A: make([][]float64, numStates)}
		for s := 0; s < int(numStates); s++ {
			row, err := readFloat64Slice(r, int(numStates))
			if err != nil {
				return err
			}
			t.A[s] = row
		}
		h.Transitions[i] = t
	}
	return nil
}

func readVariances(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.Variances = make([]*Variance, count)
	for i := range h.Variances {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		length, err := readInt16(r)
		if err != nil {
			return err
		}
		vec, err := readFloat64Slice(r, int(length))
		if err != nil {
			return err
		}
		h.Variances[i] = &Variance{Name: name, Vec: vec}
	}
	return nil
}

func readDensities(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.Densities = make([]*Density, count)
	for i := range h.Densities {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		meanLen, err := readInt16(r)
		if err != nil {
			return err
		}
		mean, err := readFloat64Slice(r, int(meanLen))
		if err != nil {
			return err
		}
		varID, err := readInt32(r)
		if err != nil {
			return err
		}
		if int(varID) < 0 || int(varID) >= len(h.Variances) {
			return fmt.Errorf("density %d: variance id %d out of range", i, varID)
		}
		gconst, err := readFloat64(r)
		if err != nil {
			return err
		}
		h.Densities[i] = &Density{Name: name, Mean: mean, Var: h.Variances[varID], GConst: gconst}
	}
	return nil
}

func readCodebooks(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.Codebooks = make([]*Codebook, count)
	for i := range h.Codebooks {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		num, err := readInt32(r)
		if err != nil {
			return err
		}
		cb := &Codebook{Name: name, ID: i, D: make([]*Density, num)}
		for j := range cb.D {
			did, err := readInt32(r)
			if err != nil {
				return err
			}
			if int(did) < 0 || int(did) >= len(h.Densities) {
				return fmt.Errorf("codebook %d entry %d: density id %d out of range", i, j, did)
			}
			cb.D[j] = h.Densities[did]
		}
		h.Codebooks[i] = cb
	}
	return nil
}

func readStates(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.States = make([]*State, count)
	for i := range h.States {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		mixNum, err := readInt16(r)
		if err != nil {
			return err
		}
		st := &State{Name: name, ID: i}
		if mixNum == -1 {
			cbID, err := readInt32(r)
			if err != nil {
				return err
			}
			if int(cbID) < 0 || int(cbID) >= len(h.Codebooks) {
				return fmt.Errorf("state %d: codebook id %d out of range", i, cbID)
			}
			st.Codebook = h.Codebooks[cbID]
			mixNum = int16(len(st.Codebook.D))
		} else {
			st.D = make([]*Density, mixNum)
			for j := range st.D {
				did, err := readInt32(r)
				if err != nil {
					return err
				}
				if int(did) < 0 || int(did) >= len(h.Densities) {
					return fmt.Errorf("state %d entry %d: density id %d out of range", i, j, did)
				}
				st.D[j] = h.Densities[did]
			}
		}
		weight, err := readFloat64Slice(r, int(mixNum))
		if err != nil {
			return err
		}
		st.Weight = weight
		h.States[i] = st
	}
	return nil
}

func readPhysical(r io.Reader, h *HMMSet) error {
	count, err := readInt32(r)
	if err != nil {
		return err
	}
	h.Physical = make([]*PhysicalHMM, count)
	for i := range h.Physical {
		name, err := readCString(r)
		if err != nil {
			return err
		}
		stateNum, err := readInt16(r)
		if err != nil {
			return err
		}
		states := make([]*State, stateNum)
		for j := range states {
			sid, err := readInt32(r)
			if err != nil {
				return err
			}
			if int(sid) < 0 || int(sid) >= len(h.States) {
				return fmt.Errorf("HMM %d entry %d: state id %d out of range", i, j, sid)
			}
			states[j] = h.States[sid]
		}
		tid, err := readInt32(r)
		if err != nil {
			return err
		}
		if int(tid) < 0 || int(tid) >= len(h.Transitions) {
			return fmt.Errorf("HMM %d: transition id %d out of range", i, tid)
		}
		h.Physical[i] = &PhysicalHMM{Name: name, States: states, Trans: h.Transitions[tid]}
	}
	return nil
}
