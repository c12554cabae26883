package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	gfcontext "github.com/vnykmshr/rateguard/pkg/common/context"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/common/validation"
	"github.com/vnykmshr/rateguard/pkg/metrics"
	"github.com/vnykmshr/rateguard/pkg/scheduling/workerpool"
)

// Scheduler runs tasks on cron schedules.
type Scheduler interface {
	// Add registers task under id. Expressions accept an optional leading
	// seconds field and descriptors such as "@hourly" or "@every 5m".
	Add(id string, cronExpr string, task workerpool.Task) error

	// Remove unregisters a task. It reports whether id was registered.
	Remove(id string) bool

	// Next returns the next activation time of a registered task.
	Next(id string) (time.Time, error)

	// List returns registered jobs sorted by ID.
	List() []Job

	// Start begins running jobs in the background.
	Start()

	// Stop halts new activations and cancels running tasks. The returned
	// context is done once running tasks have returned.
	Stop() context.Context
}

// Job describes a registered task.
type Job struct {
	ID             string
	CronExpression string
	Next           time.Time
	Prev           time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// Location is used to evaluate cron expressions (default: time.Local).
	Location *time.Location

	// TaskTimeout bounds a single activation (0 = no timeout).
	TaskTimeout time.Duration

	// OnError is called when an activation returns an error or panics.
	OnError func(id string, err error)

	// OnSkip is called when an activation is skipped because the previous
	// activation of the same job is still running.
	OnSkip func(id string)

	// Metrics records runs, failures and skips per job when set.
	Metrics *metrics.Registry
}

const cronHint = `use five fields, six with seconds, or a descriptor like "@every 5m"`

// Parser accepts five or six field expressions and descriptors.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type entry struct {
	id       string
	expr     string
	entryID  cron.EntryID
	schedule cron.Schedule
}

type scheduler struct {
	config Config
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		config: cfg,
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(cfg.Location),
		),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Validate reports whether expr is a valid cron expression.
func Validate(expr string) error {
	if _, err := Parser.Parse(expr); err != nil {
		return gferrors.NewValidationError("scheduler", "cron", expr, err.Error()).
			WithHint(cronHint)
	}
	return nil
}

func (s *scheduler) Add(id string, cronExpr string, task workerpool.Task) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if task == nil {
		return gferrors.NewValidationError("scheduler", "task", nil, "cannot be nil")
	}

	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return gferrors.NewValidationError("scheduler", "cron", cronExpr, err.Error()).
			WithHint(cronHint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("scheduler: job %q already registered", id)
	}

	job := cron.NewChain(
		cron.SkipIfStillRunning(skipLogger{id: id, s: s}),
	).Then(cron.FuncJob(func() { s.run(id, task) }))

	s.entries[id] = &entry{
		id:       id,
		expr:     cronExpr,
		entryID:  s.cron.Schedule(schedule, job),
		schedule: schedule,
	}
	return nil
}

func (s *scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(e.entryID)
	delete(s.entries, id)
	return true
}

func (s *scheduler) Next(id string) (time.Time, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, fmt.Errorf("scheduler: job %q not found", id)
	}
	return s.next(e), nil
}

// next prefers the entry's computed activation; before Start cron has not
// computed one yet.
func (s *scheduler) next(e *entry) time.Time {
	if next := s.cron.Entry(e.entryID).Next; !next.IsZero() {
		return next
	}
	return e.schedule.Next(time.Now().In(s.config.Location))
}

func (s *scheduler) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.entries))
	for _, e := range s.entries {
		jobs = append(jobs, Job{
			ID:             e.id,
			CronExpression: e.expr,
			Next:           s.next(e),
			Prev:           s.cron.Entry(e.entryID).Prev,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

func (s *scheduler) Start() {
	s.cron.Start()
}

func (s *scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.cancel()
	return done
}

func (s *scheduler) run(id string, task workerpool.Task) {
	ctx, cancel := gfcontext.WithOptionalTimeout(s.ctx, s.config.TaskTimeout)
	defer cancel()

	if m := s.config.Metrics; m != nil {
		m.ScheduledRuns.WithLabelValues(id).Inc()
	}

	if err := execute(ctx, task); err != nil {
		if m := s.config.Metrics; m != nil {
			m.ScheduledFailures.WithLabelValues(id).Inc()
		}
		if s.config.OnError != nil {
			s.config.OnError(id, err)
		}
	}
}

func execute(ctx context.Context, task workerpool.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx)
}

func (s *scheduler) skipped(id string) {
	if m := s.config.Metrics; m != nil {
		m.ScheduledSkips.WithLabelValues(id).Inc()
	}
	if s.config.OnSkip != nil {
		s.config.OnSkip(id)
	}
}

// skipLogger receives cron's "skip" notices for one job.
type skipLogger struct {
	id string
	s  *scheduler
}

func (l skipLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.s.skipped(l.id)
	}
}

func (l skipLogger) Error(err error, msg string, keysAndValues ...interface{}) {}

// BackoffTask wraps a task with retry logic.
type BackoffTask struct {
	Task         workerpool.Task
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Execute implements workerpool.Task with exponential backoff. Errors that
// are not retryable are returned immediately.
func (bt BackoffTask) Execute(ctx context.Context) error {
	var lastErr error
	delay := bt.InitialDelay

	for attempt := 0; attempt <= bt.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = bt.Task.Execute(ctx)
		if lastErr == nil || !gferrors.IsRetryable(lastErr) {
			return lastErr
		}

		delay *= 2
		if bt.MaxDelay > 0 && delay > bt.MaxDelay {
			delay = bt.MaxDelay
		}
	}

	return lastErr
}
