// Package acmodel holds the acoustic model's in-memory data model (a set
// of physical HMMs built from tied or untied Gaussian mixtures, plus the
// logical-name lookup used to resolve context-dependent triphones) and a
// binary container reader/writer for it.
package acmodel

import "fmt"

// Options mirrors the HTK stream/covariance/duration/parameter-kind
// declarations carried in a model header.
type Options struct {
	StreamNum      int16
	StreamVecSizes []int16
	VecSize        int16
	CovType        int16
	DurType        int16
	ParamType      int16
}

// Transition is a state transition log-probability matrix shared by every
// physical HMM built from it.
type Transition struct {
	Name      string
	NumStates int
	A         [][]float64 // NumStates x NumStates, row-major
}

// Variance is a diagonal covariance vector shared by one or more densities.
// Whether it is stored pre-inverted is a model-wide flag
// (HMMSet.VarianceInversed), not per-vector.
type Variance struct {
	Name string
	Vec  []float64
}

// Density is a single Gaussian component: a mean vector, a shared variance,
// and the HTK gconst bias term.
type Density struct {
	Name   string
	Mean   []float64
	Var    *Variance
	GConst float64
}

// Codebook is a tied-mixture codebook: a shared pool of densities indexed
// by id and referenced by every state that ties to it.
type Codebook struct {
	Name string
	ID   int
	D    []*Density
}

// State is one HMM state's Gaussian mixture: either its own list of
// densities and weights, or (when Codebook is set) a tied-mixture state
// sharing a codebook with its own weight vector over the codebook's
// densities.
type State struct {
	Name     string
	ID       int
	Codebook *Codebook // non-nil for tied-mixture states
	D        []*Density
	Weight   []float64 // log mixture weights, len(Weight) == mixture count
}

// MixtureCount returns the number of mixture components addressable at
// this state, whether tied or untied.
func (s *State) MixtureCount() int {
	if s.Codebook != nil {
		return len(s.Codebook.D)
	}
	return len(s.D)
}

// Density returns the i'th mixture component's density, following the
// codebook indirection for tied-mixture states.
func (s *State) Density(i int) *Density {
	if s.Codebook != nil {
		return s.Codebook.D[i]
	}
	return s.D[i]
}

// PhysicalHMM is a concrete, fully resolved HMM: an ordered state sequence
// sharing one transition matrix.
type PhysicalHMM struct {
	Name   string
	States []*State
	Trans  *Transition
}

// HMMSet is the full acoustic model: every physical HMM plus the
// logical-name resolution table used to map context-dependent triphone
// names (as they appear in a dictionary's phone sequences) onto physical
// HMMs or synthesised pseudo-phones.
type HMMSet struct {
	Options          Options
	IsTiedMixture    bool
	MaxMixtureNum    int
	VarianceInversed bool

	Transitions []*Transition
	Variances   []*Variance
	Densities   []*Density
	Codebooks   []*Codebook
	States      []*State
	Physical    []*PhysicalHMM

	ByName map[string]*PhysicalHMM

	// Logical maps a logical (context-dependent) name directly onto a
	// physical HMM, populated as the dictionary/lexicon builder resolves
	// names. Pseudo holds names resolved via pseudo-phone backoff rather
	// than an exact physical match, kept separate so callers can report
	// how many triphones fell back.
	Logical map[string]*PhysicalHMM
	Pseudo  map[string]*PhysicalHMM
}

// NewHMMSet returns an empty model ready to be populated by a reader.
func NewHMMSet() *HMMSet {
	return &HMMSet{
		ByName:  make(map[string]*PhysicalHMM),
		Logical: make(map[string]*PhysicalHMM),
		Pseudo:  make(map[string]*PhysicalHMM),
	}
}

func (h *HMMSet) index() {
	h.ByName = make(map[string]*PhysicalHMM, len(h.Physical))
	for _, p := range h.Physical {
		h.ByName[p.Name] = p
	}
}

// RegisterLogical binds a logical HMM name (as used in a dictionary phone
// sequence) to a physical HMM name already present in the set.
func (h *HMMSet) RegisterLogical(logicalName, physicalName string) error {
	p, ok := h.ByName[physicalName]
	if !ok {
		return fmt.Errorf("acmodel: physical HMM %q not found for logical name %q", physicalName, logicalName)
	}
	h.Logical[logicalName] = p
	return nil
}
