package acmodel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// WriteBinary serialises h in the format ReadBinary expects. The Julius
// original ships this as a separate "mkbinhmm" conversion tool rather than
// inline in read_binhmm.c; here the encode/decode pair lives together since
// this engine has no separate ASCII HTK MMF importer to feed it.
func WriteBinary(w io.Writer, h *HMMSet) error {
	bw := bufio.NewWriter(w)

	if err := writeHeader(bw, h.VarianceInversed); err != nil {
		return err
	}
	if err := writeOptions(bw, h.Options); err != nil {
		return err
	}
	if err := writeType(bw, h); err != nil {
		return err
	}
	if err := writeTransitions(bw, h); err != nil {
		return err
	}
	if err := writeVariances(bw, h); err != nil {
		return err
	}

	densID := make(map[*Density]int32, len(h.Densities))
	for i, d := range h.Densities {
		densID[d] = int32(i)
	}
	if err := writeDensities(bw, h, densID); err != nil {
		return err
	}

	cbID := make(map[*Codebook]int32, len(h.Codebooks))
	if h.IsTiedMixture {
		for i, c := range h.Codebooks {
			cbID[c] = int32(i)
		}
		if err := writeCodebooks(bw, h, densID); err != nil {
			return err
		}
	}

	stID := make(map[*State]int32, len(h.States))
	for i, s := range h.States {
		stID[s] = int32(i)
	}
	if err := writeStates(bw, h, densID, cbID); err != nil {
		return err
	}

	trID := make(map[*Transition]int32, len(h.Transitions))
	for i, t := range h.Transitions {
		trID[t] = int32(i)
	}
	if err := writePhysical(bw, h, stID, trID); err != nil {
		return err
	}

	return bw.Flush()
}

func writeCString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func writeHeader(w io.Writer, varInverse bool) error {
	if err := writeCString(w, magicV2); err != nil {
		return err
	}
	var flag byte
	if varInverse {
		flag = flagVarInverse
	}
	return binary.Write(w, binary.BigEndian, flag)
}

func writeOptions(w io.Writer, opt Options) error {
	if err := binary.Write(w, binary.BigEndian, opt.StreamNum); err != nil {
		return err
	}
	sizes := opt.StreamVecSizes
	if len(sizes) < 50 {
		sizes = append(append([]int16{}, sizes...), make([]int16, 50-len(sizes))...)
	}
	for _, v := range sizes[:50] {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	for _, v := range []int16{opt.VecSize, opt.CovType, opt.DurType, opt.ParamType} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeType(w io.Writer, h *HMMSet) error {
	var tied byte
	if h.IsTiedMixture {
		tied = 1
	}
	if err := binary.Write(w, binary.BigEndian, tied); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, int32(h.MaxMixtureNum))
}

func writeTransitions(w io.Writer, h *HMMSet) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.Transitions))); err != nil {
		return err
	}
	for _, t := range h.Transitions {
		if err := writeCString(w, t.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int16(t.NumStates)); err != nil {
			return err
		}
		for _, row := range t.A {
			if len(row) != t.NumStates {
				return fmt.Errorf("transition %q: row length %d != NumStates %d", t.Name, len(row), t.NumStates)
			}
			for _, v := range row {
				if err := binary.Write(w, binary.BigEndian, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeVariances(w io.Writer, h *HMMSet) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.Variances))); err != nil {
		return err
	}
	for _, v := range h.Variances {
		if err := writeCString(w, v.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int16(len(v.Vec))); err != nil {
			return err
		}
		for _, x := range v.Vec {
			if err := binary.Write(w, binary.BigEndian, x); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeDensities(w io.Writer, h *HMMSet, densID map[*Density]int32) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.Densities))); err != nil {
		return err
	}
	varIdx := make(map[*Variance]int32, len(h.Variances))
	for i, v := range h.Variances {
		varIdx[v] = int32(i)
	}
	for _, d := range h.Densities {
		if err := writeCString(w, d.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int16(len(d.Mean))); err != nil {
			return err
		}
		for _, x := range d.Mean {
			if err := binary.Write(w, binary.BigEndian, x); err != nil {
				return err
			}
		}
		vid, ok := varIdx[d.Var]
		if !ok {
			return fmt.Errorf("density %q references an unregistered variance", d.Name)
		}
		if err := binary.Write(w, binary.BigEndian, vid); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, d.GConst); err != nil {
			return err
		}
	}
	return nil
}

func writeCodebooks(w io.Writer, h *HMMSet, densID map[*Density]int32) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.Codebooks))); err != nil {
		return err
	}
	for _, c := range h.Codebooks {
		if err := writeCString(w, c.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(len(c.D))); err != nil {
			return err
		}
		for _, d := range c.D {
			id, ok := densID[d]
			if !ok {
				return fmt.Errorf("codebook %q references an unregistered density", c.Name)
			}
			if err := binary.Write(w, binary.BigEndian, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStates(w io.Writer, h *HMMSet, densID map[*Density]int32, cbID map[*Codebook]int32) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.States))); err != nil {
		return err
	}
	for _, s := range h.States {
		if err := writeCString(w, s.Name); err != nil {
			return err
		}
		if s.Codebook != nil {
			if err := binary.Write(w, binary.BigEndian, int16(-1)); err != nil {
				return err
			}
			id, ok := cbID[s.Codebook]
			if !ok {
				return fmt.Errorf("state %q references an unregistered codebook", s.Name)
			}
			if err := binary.Write(w, binary.BigEndian, id); err != nil {
				return err
			}
		} else {
			if err := binary.Write(w, binary.BigEndian, int16(len(s.D))); err != nil {
				return err
			}
			for _, d := range s.D {
				id, ok := densID[d]
				if !ok {
					return fmt.Errorf("state %q references an unregistered density", s.Name)
				}
				if err := binary.Write(w, binary.BigEndian, id); err != nil {
					return err
				}
			}
		}
		for _, v := range s.Weight {
			if err := binary.Write(w, binary.BigEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePhysical(w io.Writer, h *HMMSet, stID map[*State]int32, trID map[*Transition]int32) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(h.Physical))); err != nil {
		return err
	}
	for _, p := range h.Physical {
		if err := writeCString(w, p.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int16(len(p.States))); err != nil {
			return err
		}
		for _, s := range p.States {
			id, ok := stID[s]
			if !ok {
				return fmt.Errorf("HMM %q references an unregistered state", p.Name)
			}
			if err := binary.Write(w, binary.BigEndian, id); err != nil {
				return err
			}
		}
		tid, ok := trID[p.Trans]
		if !ok {
			return fmt.Errorf("HMM %q references an unregistered transition", p.Name)
		}
		if err := binary.Write(w, binary.BigEndian, tid); err != nil {
			return err
		}
	}
	return nil
}
