package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-recog/internal/audio"
	"github.com/example/go-recog/internal/engine"
	"github.com/example/go-recog/internal/feat"
	"github.com/spf13/cobra"
)

func newRecognizeCmd() *cobra.Command {
	var (
		input      string
		raw        bool
		sampleRate int
		format     string
	)

	cmd := &cobra.Command{
		Use:   "recognize",
		Short: "Decode a PCM/WAV file (or stdin) and print recognised sentences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("--format must be 'text' or 'json'")
			}

			model, varianceInverted, err := loadModel(cfg)
			if err != nil {
				return err
			}

			var src audio.Source
			opaque := input
			if input == "" {
				src = audio.NewStdinSource(os.Stdin)
				opaque = "stdin"
			} else {
				src = audio.NewFileSource(input, raw)
			}
			if err := src.Standby(sampleRate, opaque); err != nil {
				return fmt.Errorf("prepare audio source: %w", err)
			}
			if err := src.Begin(); err != nil {
				return fmt.Errorf("begin audio source: %w", err)
			}
			defer src.Close()

			sink := &printSink{w: os.Stdout, format: format}

			pipe := feat.NewPipeline(feat.DefaultConfig(sampleRate), cfg.CMN.MAPWeight)
			decoderCfg := engine.ConfigFromDecoder(cfg, varianceInverted, nil)
			r := engine.New(model, model.Tree, decoderCfg, pipe, sink)
			r.Begin()

			ctx := cmd.Context()
			buf := make([]int16, sampleRate/10) // 100ms chunks

			for {
				n, rerr := src.Read(buf)
				if n > 0 {
					if ferr := r.Feed(ctx, buf[:n]); ferr != nil {
						return fmt.Errorf("feed audio: %w", ferr)
					}
				}
				if rerr == nil {
					continue
				}
				if errors.Is(rerr, audio.ErrSourceEnd) {
					break
				}
				return fmt.Errorf("read audio: %w", rerr)
			}

			if err := r.End(ctx); err != nil {
				return fmt.Errorf("finalize recognition: %w", err)
			}

			if sink.tooShort {
				return fmt.Errorf("status %d: %s", engine.StatusInputTooShort.Code(), engine.StatusInputTooShort)
			}
			if sink.count == 0 {
				return fmt.Errorf("no recognition result produced")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "PCM/WAV file to decode (default: read raw PCM16 from stdin)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Treat --input as headerless little-endian PCM16 rather than WAV")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "Sample rate of the input audio")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")

	return cmd
}

// printSink renders each completed segment's Event as it arrives, the CLI
// counterpart of internal/server's moduleSink but to a plain writer
// instead of a module-mode TCP connection.
type printSink struct {
	w        *os.File
	format   string
	count    int
	tooShort bool
}

func (s *printSink) Accept(e engine.Event) {
	switch e.Kind {
	case engine.EventResult, engine.EventRejected:
		s.count++
		s.write(e)
	case engine.EventFailed:
		s.count++
		if e.Status == engine.StatusInputTooShort {
			s.tooShort = true
		}
		s.writeFailed(e)
	}
}

func (s *printSink) write(e engine.Event) {
	if s.format == "json" {
		enc := json.NewEncoder(s.w)
		_ = enc.Encode(map[string]any{
			"segment":    e.Segment,
			"status":     e.Status.Code(),
			"rejected":   e.Kind == engine.EventRejected,
			"confidence": e.Verdict.Confidence,
			"words":      e.Words,
		})
		return
	}

	tag := "OK"
	if e.Kind == engine.EventRejected {
		tag = "REJECTED"
	}
	fmt.Fprintf(s.w, "[segment %d %s conf=%.3f] %s\n", e.Segment, tag, e.Verdict.Confidence, strings.Join(e.Words, " "))
}

func (s *printSink) writeFailed(e engine.Event) {
	if s.format == "json" {
		enc := json.NewEncoder(s.w)
		_ = enc.Encode(map[string]any{
			"segment": e.Segment,
			"status":  e.Status.Code(),
			"error":   e.Status.String(),
		})
		return
	}
	fmt.Fprintf(s.w, "[segment %d FAILED status=%d] %s\n", e.Segment, e.Status.Code(), e.Status)
}
