package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/vnykmshr/rateguard/internal/testutil"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/metrics"
	"github.com/vnykmshr/rateguard/pkg/scheduling/workerpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noop() workerpool.Task {
	return workerpool.TaskFunc(func(ctx context.Context) error { return nil })
}

func stop(t *testing.T, s Scheduler) {
	t.Helper()
	select {
	case <-s.Stop().Done():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("scheduler did not stop")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 */5 * * * *", false},
		{"@hourly", false},
		{"@every 1m30s", false},
		{"", true},
		{"not a cron", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, gferrors.ErrInvalidConfiguration) {
					t.Fatalf("got %v, want ErrInvalidConfiguration", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
		})
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s := New()
	defer stop(t, s)

	testutil.AssertError(t, s.Add("", "@hourly", noop()))
	testutil.AssertError(t, s.Add("job", "@hourly", nil))
	testutil.AssertError(t, s.Add("job", "bogus", noop()))

	testutil.AssertNoError(t, s.Add("job", "@hourly", noop()))
	testutil.AssertError(t, s.Add("job", "@daily", noop()))
}

func TestNextBeforeStart(t *testing.T) {
	loc := time.UTC
	s := NewWithConfig(Config{Location: loc})
	defer stop(t, s)

	testutil.AssertNoError(t, s.Add("hourly", "@hourly", noop()))

	next, err := s.Next("hourly")
	testutil.AssertNoError(t, err)

	now := time.Now().In(loc)
	if !next.After(now) || next.Sub(now) > time.Hour {
		t.Errorf("next = %v, want within the next hour of %v", next, now)
	}
	testutil.AssertEqual(t, next.Minute(), 0)
	testutil.AssertEqual(t, next.Second(), 0)

	_, err = s.Next("missing")
	testutil.AssertError(t, err)
}

func TestRemove(t *testing.T) {
	s := New()
	defer stop(t, s)

	testutil.AssertNoError(t, s.Add("a", "@hourly", noop()))
	testutil.AssertNoError(t, s.Add("b", "@daily", noop()))

	jobs := s.List()
	testutil.AssertEqual(t, len(jobs), 2)
	testutil.AssertEqual(t, jobs[0].ID, "a")
	testutil.AssertEqual(t, jobs[1].CronExpression, "@daily")

	testutil.AssertEqual(t, s.Remove("a"), true)
	testutil.AssertEqual(t, s.Remove("a"), false)
	testutil.AssertEqual(t, len(s.List()), 1)

	// the ID can be reused once removed
	testutil.AssertNoError(t, s.Add("a", "@daily", noop()))
}

func TestRunsOnSchedule(t *testing.T) {
	var runs int64
	s := New()

	testutil.AssertNoError(t, s.Add("tick", "* * * * * *", workerpool.TaskFunc(func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})))
	s.Start()

	testutil.WaitForInt64(t, &runs, 1, 3*time.Second)
	stop(t, s)

	jobs := s.List()
	testutil.AssertEqual(t, jobs[0].Prev.IsZero(), false)
}

func TestErrorsAndPanicsReported(t *testing.T) {
	errs := make(chan error, 16)
	registry := metrics.NewRegistry(prometheus.NewRegistry())

	s := NewWithConfig(Config{
		OnError: func(id string, err error) {
			if id == "failing" {
				errs <- err
			}
		},
		Metrics: registry,
	})

	testutil.AssertNoError(t, s.Add("failing", "* * * * * *", workerpool.TaskFunc(func(ctx context.Context) error {
		panic("boom")
	})))
	s.Start()

	select {
	case err := <-errs:
		testutil.AssertEqual(t, err.Error(), "task panicked: boom")
	case <-time.After(3 * time.Second):
		t.Fatal("error not reported")
	}
	stop(t, s)

	if promtestutil.ToFloat64(registry.ScheduledFailures.WithLabelValues("failing")) < 1 {
		t.Error("failure not recorded")
	}
	if promtestutil.ToFloat64(registry.ScheduledRuns.WithLabelValues("failing")) < 1 {
		t.Error("run not recorded")
	}
}

func TestOverlappingRunsSkipped(t *testing.T) {
	var skips int64
	started := make(chan struct{}, 1)

	s := NewWithConfig(Config{
		OnSkip: func(id string) { atomic.AddInt64(&skips, 1) },
	})

	testutil.AssertNoError(t, s.Add("slow", "* * * * * *", workerpool.TaskFunc(func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})))
	s.Start()

	<-started
	testutil.WaitForInt64(t, &skips, 1, 3*time.Second)
	stop(t, s)
}

func TestStopCancelsRunningTask(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)

	s := New()
	testutil.AssertNoError(t, s.Add("long", "* * * * * *", workerpool.TaskFunc(func(ctx context.Context) error {
		select {
		case <-started:
			return nil
		default:
			close(started)
		}
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	})))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task never started")
	}
	stop(t, s)

	testutil.AssertEqual(t, <-finished, context.Canceled)
}

func TestBackoffTask(t *testing.T) {
	var attempts int64
	task := BackoffTask{
		Task: workerpool.TaskFunc(func(ctx context.Context) error {
			if atomic.AddInt64(&attempts, 1) < 3 {
				return gferrors.ErrRateLimited
			}
			return nil
		}),
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
	}

	testutil.AssertNoError(t, task.Execute(context.Background()))
	testutil.AssertEqual(t, atomic.LoadInt64(&attempts), int64(3))
}

func TestBackoffTaskStopsOnPermanentError(t *testing.T) {
	var attempts int64
	permanent := errors.New("bad request")
	task := BackoffTask{
		Task: workerpool.TaskFunc(func(ctx context.Context) error {
			atomic.AddInt64(&attempts, 1)
			return permanent
		}),
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
	}

	testutil.AssertEqual(t, task.Execute(context.Background()), permanent)
	testutil.AssertEqual(t, atomic.LoadInt64(&attempts), int64(1))
}

func TestBackoffTaskHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := BackoffTask{
		Task:         workerpool.TaskFunc(func(ctx context.Context) error { return gferrors.ErrTimeout }),
		MaxRetries:   3,
		InitialDelay: time.Hour,
	}

	testutil.AssertEqual(t, task.Execute(ctx), context.Canceled)
}
