package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/dict"
	"github.com/example/go-recog/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local model and configuration checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				AcousticModel: func() (string, error) {
					f, err := os.Open(cfg.Paths.AcousticModel)
					if err != nil {
						return "", err
					}
					defer f.Close()

					hmm, err := acmodel.ReadBinary(f)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d physical HMMs, tied-mixture=%t", len(hmm.Physical), hmm.IsTiedMixture), nil
				},
				Dictionary: func() (string, error) {
					f, err := os.Open(cfg.Paths.Dictionary)
					if err != nil {
						return "", err
					}
					defer f.Close()

					d, err := dict.Load(f, nil, true)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d entries, %d missing phones", len(d.Entries), len(d.MissingPhones)), nil
				},
				GrammarFiles: doctor.GrammarFilesForPrefixes(cfg.Paths.GrammarPrefix),
				CMNLoadPath:  cfg.CMN.LoadPath,
			}

			result := doctor.Run(dcfg, os.Stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")
			return nil
		},
	}

	return cmd
}
