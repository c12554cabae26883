// Package batch sends a set of questions to a generator through a shared
// rate gate using a worker pool.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/rateguard/pkg/client"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/common/validation"
	"github.com/vnykmshr/rateguard/pkg/metrics"
	"github.com/vnykmshr/rateguard/pkg/ratelimit/gate"
	"github.com/vnykmshr/rateguard/pkg/scheduling/workerpool"
)

// DefaultWorkers is the worker count used when Config.Workers is zero.
const DefaultWorkers = 10

// Result is the outcome for one record.
type Result struct {
	ID       string
	Question string
	Response string
	Err      error
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Model   string
	Results map[string]Result
	Failed  int
	Elapsed time.Duration
}

// Succeeded returns the number of records that produced a response.
func (r Report) Succeeded() int {
	return len(r.Results) - r.Failed
}

// Config holds runner configuration.
type Config struct {
	// Generator produces responses. Required.
	Generator client.Generator

	// Gate throttles every generator call. Required.
	Gate gate.Admitter

	// Model is passed to the generator (default: client.DefaultModel).
	Model string

	// Workers is the number of concurrent callers (default: DefaultWorkers).
	Workers int

	// Progress is called after each record completes, with the number of
	// completed records and the total. It may be called from several
	// workers at once.
	Progress func(done, total int, result Result)

	// Metrics records worker pool activity when set.
	Metrics *metrics.Registry
}

// Runner executes batches.
type Runner struct {
	config Config
}

// NewRunner validates cfg and returns a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Generator == nil {
		return nil, gferrors.NewValidationError("batch", "generator", nil, "cannot be nil")
	}
	if cfg.Gate == nil {
		return nil, gferrors.NewValidationError("batch", "gate", nil, "cannot be nil").
			WithHint("share one gate across all workers")
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if err := validation.ValidatePositive("batch", "workers", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = client.DefaultModel
	}
	return &Runner{config: cfg}, nil
}

type recordTask struct {
	record Record
	call   func(context.Context, string) (string, error)
	result Result
}

func (t *recordTask) Execute(ctx context.Context) error {
	start := time.Now()
	resp, err := t.call(ctx, t.record.Prompt())
	t.result = Result{
		ID:       t.record.ID,
		Question: t.record.Question,
		Response: resp,
		Err:      err,
		Duration: time.Since(start),
	}
	return err
}

// Run processes records and returns a report. Per-record failures are
// recorded in the report; the returned error is non-nil only when the
// records have missing or repeated IDs, or when ctx ends before every
// record was attempted.
func (r *Runner) Run(ctx context.Context, records []Record) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:   uuid.NewString(),
		Model:   r.config.Model,
		Results: make(map[string]Result, len(records)),
	}
	if err := checkRecords(records); err != nil {
		return report, err
	}

	model := r.config.Model
	gen := r.config.Generator
	call := gate.WrapContext(r.config.Gate, func(ctx context.Context, prompt string) (string, error) {
		return gen.Generate(ctx, model, prompt)
	})

	var mu sync.Mutex
	total := len(records)
	done := 0

	pool, err := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: r.config.Workers,
		QueueSize:   total,
		Name:        "batch",
		Metrics:     r.config.Metrics,
		OnTaskComplete: func(workerID int, res workerpool.Result) {
			task := res.Task.(*recordTask)
			result := task.result
			if result.ID == "" {
				// the task panicked before recording anything
				result = Result{ID: task.record.ID, Question: task.record.Question, Err: res.Error, Duration: res.Duration}
			}

			mu.Lock()
			report.Results[result.ID] = result
			if result.Err != nil {
				report.Failed++
			}
			done++
			n := done
			mu.Unlock()

			if r.config.Progress != nil {
				r.config.Progress(n, total, result)
			}
		},
	})
	if err != nil {
		return report, err
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range pool.Results() {
		}
	}()

	var submitErr error
	for _, rec := range records {
		if err := pool.SubmitWithContext(ctx, &recordTask{record: rec, call: call}); err != nil {
			submitErr = err
			break
		}
	}

	<-pool.Shutdown()
	<-drained

	report.Elapsed = time.Since(start)
	if submitErr != nil {
		return report, fmt.Errorf("batch %s: %w", report.RunID, submitErr)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch %s: %w", report.RunID, err)
	}
	return report, nil
}

// Task adapts a run over records to a workerpool.Task, so a batch can be
// scheduled. OnReport receives every report, including partial ones.
func (r *Runner) Task(records []Record, onReport func(Report, error) error) workerpool.Task {
	return workerpool.TaskFunc(func(ctx context.Context) error {
		report, err := r.Run(ctx, records)
		if onReport != nil {
			if herr := onReport(report, err); herr != nil {
				return herr
			}
		}
		return err
	})
}
