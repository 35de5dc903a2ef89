package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/config"
)

func writeFixtureAcousticModel(t *testing.T, path string) {
	t.Helper()

	v := &acmodel.Variance{Name: "v1", Vec: []float64{1, 1}}
	d := &acmodel.Density{Mean: []float64{0, 0}, Var: v}
	st := &acmodel.State{Name: "k_s2", D: []*acmodel.Density{d}, Weight: []float64{0}}
	tr := &acmodel.Transition{Name: "tr", NumStates: 2, A: [][]float64{{-0.1, -0.1}, {0, 0}}}
	p := &acmodel.PhysicalHMM{Name: "k", States: []*acmodel.State{st}, Trans: tr}

	hmm := acmodel.NewHMMSet()
	hmm.Variances = []*acmodel.Variance{v}
	hmm.Densities = []*acmodel.Density{d}
	hmm.States = []*acmodel.State{st}
	hmm.Transitions = []*acmodel.Transition{tr}
	hmm.Physical = []*acmodel.PhysicalHMM{p}
	hmm.ByName["k"] = p

	var buf bytes.Buffer
	if err := acmodel.WriteBinary(&buf, hmm); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeFixtureDictionary(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("K [k] k\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDoctorCmd_PassesOnWellFormedFixtures(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	tmp := t.TempDir()
	amPath := filepath.Join(tmp, "am.bin")
	dictPath := filepath.Join(tmp, "dict.txt")
	writeFixtureAcousticModel(t, amPath)
	writeFixtureDictionary(t, dictPath)

	activeCfg = config.Config{
		Paths: config.PathsConfig{AcousticModel: amPath, Dictionary: dictPath},
	}

	cmd := newDoctorCmd()
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("doctor RunE: %v", err)
	}
}

func TestDoctorCmd_FailsOnMissingAcousticModel(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	tmp := t.TempDir()
	dictPath := filepath.Join(tmp, "dict.txt")
	writeFixtureDictionary(t, dictPath)

	activeCfg = config.Config{
		Paths: config.PathsConfig{AcousticModel: filepath.Join(tmp, "missing.bin"), Dictionary: dictPath},
	}

	cmd := newDoctorCmd()
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected error for missing acoustic model file")
	}
}
