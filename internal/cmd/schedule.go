package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateguard/pkg/batch"
	"github.com/vnykmshr/rateguard/pkg/common/validation"
	"github.com/vnykmshr/rateguard/pkg/scheduling/scheduler"
)

const scheduledJobID = "batch"

func newScheduleCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Process a batch of questions on a cron schedule",
		Long: `Runs the batch every time the cron expression fires until interrupted.
Expressions take five fields, six with a leading seconds field, or a
descriptor such as "@every 10m". A run that is still going when the next one
is due causes that activation to be skipped.`,
		Example: `  rateguard schedule --input questions.json --cron "0 */5 * * * *"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScheduled(ctx, cmd, opts)
		},
	}
	addBatchFlags(cmd.Flags())
	cmd.Flags().String("cron", "", "cron expression (required)")
	return cmd
}

func runScheduled(ctx context.Context, cmd *cobra.Command, opts *options) error {
	expr := opts.cfg.Schedule.Cron
	if err := validation.ValidateNotEmpty("schedule", "cron", expr); err != nil {
		return err
	}
	if err := scheduler.Validate(expr); err != nil {
		return err
	}

	a, err := newApp(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.loadRecords()
	if err != nil {
		return err
	}

	s := scheduler.NewWithConfig(scheduler.Config{
		Metrics: a.metrics,
		OnError: func(id string, err error) {
			a.logger.Error("Scheduled run failed", zap.String("job", id), zap.Error(err))
		},
		OnSkip: func(id string) {
			a.logger.Warn("Scheduled run skipped, previous run still active", zap.String("job", id))
		},
	})

	task := a.runner.Task(records, func(report batch.Report, runErr error) error {
		if err := a.store(ctx, report); err != nil {
			return err
		}
		a.logger.Info("Scheduled run finished",
			zap.String("run_id", report.RunID),
			zap.Int("succeeded", report.Succeeded()),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.Elapsed))
		return runErr
	})
	if err := s.Add(scheduledJobID, expr, task); err != nil {
		return err
	}

	s.Start()
	next, _ := s.Next(scheduledJobID)
	a.logger.Info("Scheduler started",
		zap.String("cron", expr),
		zap.Time("next", next),
		zap.Int("records", len(records)))

	<-ctx.Done()
	a.logger.Info("Stopping scheduler")
	<-s.Stop().Done()
	return nil
}
