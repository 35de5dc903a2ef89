package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/config"
	"github.com/example/go-recog/internal/dict"
	"github.com/example/go-recog/internal/engine"
	"github.com/example/go-recog/internal/lm"
)

// loadModel reads the acoustic model and dictionary named in cfg.Paths and
// assembles a ready-to-use engine.Model: a lexicon tree built over the
// whole dictionary, a flat (uniform-unigram) language model per spec.md
// §3's isolated-word LM type since no N-gram/DFA file format is parsed
// here (see DESIGN.md's Open Question (c)), and a grammar manager seeded
// with this one dictionary as grammar "default" so the HTTP control
// surface's add/delete/activate endpoints have something to operate on.
func loadModel(cfg config.Config) (*engine.Model, bool, error) {
	amFile, err := os.Open(cfg.Paths.AcousticModel)
	if err != nil {
		return nil, false, fmt.Errorf("open acoustic model: %w", err)
	}
	defer amFile.Close()

	hmm, err := acmodel.ReadBinary(amFile)
	if err != nil {
		return nil, false, fmt.Errorf("read acoustic model: %w", err)
	}

	dictFile, err := os.Open(cfg.Paths.Dictionary)
	if err != nil {
		return nil, false, fmt.Errorf("open dictionary: %w", err)
	}
	defer dictFile.Close()

	d, err := dict.Load(dictFile, hmm, true)
	if err != nil {
		return nil, false, fmt.Errorf("load dictionary: %w", err)
	}
	if len(d.MissingPhones) > 0 {
		return nil, false, fmt.Errorf("dictionary references %d unresolvable phone(s): %s",
			len(d.MissingPhones), strings.Join(d.MissingPhones, ", "))
	}

	model, err := engine.NewModel(hmm, d)
	if err != nil {
		return nil, false, fmt.Errorf("build model: %w", err)
	}
	if err := model.BuildTree(); err != nil {
		return nil, false, fmt.Errorf("build lexicon tree: %w", err)
	}

	model.NGram = lm.NewUniformNGram(len(d.Entries))
	model.Tree.ComputeFactoring(model.NGram)
	model.ShortPauseWordID = shortPauseWordID(d)

	model.Grammar = lm.NewManager()
	model.Grammar.Add("default", d, nil)

	return model, hmm.VarianceInversed, nil
}

// shortPauseWordID returns the dictionary index of the conventional
// short-pause entry ("sp"), or -1 (never segment) if the dictionary
// carries none, matching spec.md §4.8's "designated short-pause word".
func shortPauseWordID(d *dict.Dictionary) int {
	for i, e := range d.Entries {
		if strings.EqualFold(e.Name, "sp") || strings.EqualFold(e.Output, "sp") {
			return i
		}
	}
	return -1
}
