package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"revoice/internal/correct"
	"revoice/internal/daemon"
	"revoice/internal/extract"
	"revoice/internal/logging"
	"revoice/internal/mux"
	"revoice/internal/normalize"
	"revoice/internal/queue"
	"revoice/internal/synthesize"
	"revoice/internal/transcribe"
	"revoice/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "process",
		Aliases: []string{"serve"},
		Short:   "Run the processing daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			mgr := workflow.NewManager(cfg, store, logger)
			mgr.ConfigureStages(workflow.StageSet{
				Extractor:   extract.NewExtractor(cfg, store, logger),
				Normalizer:  normalize.NewNormalizer(cfg, logger),
				Transcriber: transcribe.NewTranscriber(cfg, store, logger),
				Corrector:   correct.NewCorrector(cfg, logger),
				Synthesizer: synthesize.NewSynthesizer(cfg, logger),
				Muxer:       mux.NewMuxer(cfg, logger),
			})

			d, err := daemon.New(cfg, store, logger, mgr)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "revoice daemon running; press Ctrl-C to stop")
			<-runCtx.Done()
			d.Stop()
			fmt.Fprintln(out, "revoice daemon stopped")
			return nil
		},
	}
}
