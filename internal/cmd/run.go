package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a batch of questions once",
		Example: `  rateguard run --input questions.json --rpm 15 --workers 10
  rateguard run --input questions.json --dry-run --output-path out.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, cmd, opts)
		},
	}
	addBatchFlags(cmd.Flags())
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, opts *options) error {
	a, err := newApp(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.loadRecords()
	if err != nil {
		return err
	}
	a.logger.Info("Starting batch", zap.Int("records", len(records)))

	report, runErr := a.runner.Run(ctx, records)
	if err := a.store(ctx, report); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), renderSummary(report, a.describeTarget(report)))

	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", report.Failed, len(report.Results))
	}
	return nil
}
