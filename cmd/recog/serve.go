package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-recog/internal/engine"
	"github.com/example/go-recog/internal/feat"
	"github.com/example/go-recog/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the module-mode TCP and HTTP control servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			model, varianceInverted, err := loadModel(cfg)
			if err != nil {
				return err
			}

			decoderCfg := engine.ConfigFromDecoder(cfg, varianceInverted, nil)

			newPipeline := func() *feat.Pipeline {
				return feat.NewPipeline(feat.DefaultConfig(16000), cfg.CMN.MAPWeight)
			}

			srv := server.New(cfg, model, decoderCfg, newPipeline).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	return cmd
}
