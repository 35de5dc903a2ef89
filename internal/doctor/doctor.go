// Package doctor provides preflight checks for go-recog: confirms the
// acoustic model, dictionary, and grammar files a configuration points at
// are present and loadable before a caller builds an engine.Model from them.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// SummaryFunc loads a resource and returns a one-line human summary, or an
// error describing why the resource could not be loaded.
type SummaryFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// AcousticModel loads the binary acoustic model container and
	// summarises it (e.g. physical HMM count).
	AcousticModel     SummaryFunc
	SkipAcousticModel bool

	// Dictionary loads the HTK-style dictionary against the already-loaded
	// acoustic model and summarises it (entry count, missing phones).
	Dictionary     SummaryFunc
	SkipDictionary bool

	// GrammarFiles are every file path required by the configured grammar
	// source; see GrammarFilesForPrefixes.
	GrammarFiles []string

	// CMNLoadPath is the persisted CMN mean file to check, if configured.
	CMNLoadPath string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed reports whether any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- acoustic model ----------------------------------------------------
	switch {
	case cfg.SkipAcousticModel:
		fmt.Fprintf(w, "%s acoustic model: skipped\n", PassMark)
	case cfg.AcousticModel == nil:
		res.fail("acoustic model: not configured")
		fmt.Fprintf(w, "%s acoustic model: not configured\n", FailMark)
	default:
		summary, err := cfg.AcousticModel()
		if err != nil {
			res.fail(fmt.Sprintf("acoustic model: %v", err))
			fmt.Fprintf(w, "%s acoustic model: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s acoustic model: %s\n", PassMark, summary)
		}
	}

	// ---- dictionary ---------------------------------------------------------
	switch {
	case cfg.SkipDictionary:
		fmt.Fprintf(w, "%s dictionary: skipped\n", PassMark)
	case cfg.Dictionary == nil:
		res.fail("dictionary: not configured")
		fmt.Fprintf(w, "%s dictionary: not configured\n", FailMark)
	default:
		summary, err := cfg.Dictionary()
		if err != nil {
			res.fail(fmt.Sprintf("dictionary: %v", err))
			fmt.Fprintf(w, "%s dictionary: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s dictionary: %s\n", PassMark, summary)
		}
	}

	// ---- grammar files --------------------------------------------------
	for _, path := range cfg.GrammarFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("grammar file %q: %v", path, err))
			fmt.Fprintf(w, "%s grammar file %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s grammar file: %s\n", PassMark, path)
		}
	}

	// ---- persisted CMN -------------------------------------------------
	if cfg.CMNLoadPath != "" {
		if _, err := os.Stat(cfg.CMNLoadPath); err != nil {
			res.fail(fmt.Sprintf("cmn file %q: %v", cfg.CMNLoadPath, err))
			fmt.Fprintf(w, "%s cmn file %s: not found\n", FailMark, cfg.CMNLoadPath)
		} else {
			fmt.Fprintf(w, "%s cmn file: %s\n", PassMark, cfg.CMNLoadPath)
		}
	}

	return res
}

// GrammarFilesForPrefixes expands a comma-separated list of grammar
// prefixes into each one's .dfa/.dict/.term triple, the file layout
// multi-gram.c's grammar loader expects per prefix.
func GrammarFilesForPrefixes(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+".dfa", p+".dict", p+".term")
	}
	return out
}
