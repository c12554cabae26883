package benchmark

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/vnykmshr/rateguard/pkg/batch"
	"github.com/vnykmshr/rateguard/pkg/client"
	"github.com/vnykmshr/rateguard/pkg/ratelimit/gate"
	"github.com/vnykmshr/rateguard/pkg/scheduling/workerpool"
)

// unthrottled returns a gate whose period is too small to matter, so the
// benchmarks measure coordination cost rather than sleeping.
func unthrottled(b *testing.B) *gate.RateGate {
	g, err := gate.NewWithConfig(gate.Config{RPM: 1e6, Unit: time.Nanosecond})
	if err != nil {
		b.Fatalf("failed to create gate: %v", err)
	}
	return g
}

func drain(pool workerpool.Pool) {
	go func() {
		for range pool.Results() {
		}
	}()
}

// BenchmarkWorkerPoolSubmit measures task submission performance.
func BenchmarkWorkerPoolSubmit(b *testing.B) {
	for _, workers := range []int{2, 4, 8} {
		b.Run("workers-"+strconv.Itoa(workers), func(b *testing.B) {
			pool, err := workerpool.NewWithConfig(workerpool.Config{WorkerCount: workers, QueueSize: 1000})
			if err != nil {
				b.Fatalf("failed to create pool: %v", err)
			}
			drain(pool)

			task := workerpool.TaskFunc(func(_ context.Context) error { return nil })

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(task)
			}
			b.StopTimer()
			<-pool.Shutdown()
		})
	}
}

// BenchmarkGatedPool measures admissions through one gate shared by every
// worker in a pool.
func BenchmarkGatedPool(b *testing.B) {
	for _, workers := range []int{1, 4, 16} {
		b.Run("workers-"+strconv.Itoa(workers), func(b *testing.B) {
			g := unthrottled(b)
			pool, err := workerpool.NewWithConfig(workerpool.Config{WorkerCount: workers, QueueSize: 1000})
			if err != nil {
				b.Fatalf("failed to create pool: %v", err)
			}
			drain(pool)

			task := workerpool.TaskFunc(func(ctx context.Context) error {
				return g.AdmitContext(ctx)
			})

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(task)
			}
			<-pool.Shutdown()
		})
	}
}

// BenchmarkBatchRun measures a full batch with an offline generator.
func BenchmarkBatchRun(b *testing.B) {
	records := make([]batch.Record, 100)
	for i := range records {
		records[i] = batch.Record{ID: strconv.Itoa(i), Question: "question " + strconv.Itoa(i)}
	}

	runner, err := batch.NewRunner(batch.Config{
		Generator: client.EchoGenerator{},
		Gate:      unthrottled(b),
		Workers:   8,
	})
	if err != nil {
		b.Fatalf("failed to create runner: %v", err)
	}

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := runner.Run(ctx, records); err != nil {
			b.Fatal(err)
		}
	}
}
