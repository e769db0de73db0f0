package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/ingest"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Read entities from stdin and write them to the store",
		Long: `Reads one record per line from stdin. With --format ndjson each line is a
JSON entity. With --format lines each line is split on '|' and the first
field becomes the name of a node carrying the default label.`,
		RunE: runStream,
	}
	cmd.Flags().String("format", "", "Input format: ndjson or lines (overrides ingest.format)")
	cmd.Flags().String("label", "", "Label for nodes read in lines format (overrides ingest.default_label)")
	return cmd
}

func runStream(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}

	opts := ingest.Options{Format: a.cfg.Ingest.Format, DefaultLabel: a.cfg.Ingest.DefaultLabel}
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		opts.Format = f
	}
	if l, _ := cmd.Flags().GetString("label"); l != "" {
		opts.DefaultLabel = l
	}

	res, runErr := ingest.Run(ctx, os.Stdin, a.writer, opts, a.logger)
	if runErr != nil {
		a.logger.Error("stream aborted",
			zap.Int("lines", res.Lines),
			zap.Int("entities", res.Entities),
			zap.Error(runErr))
	}
	closeErr := a.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}
