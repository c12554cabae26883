// Package metrics provides Prometheus instrumentation for rateguard components.
package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metric instances for rateguard components.
type Registry struct {
	// Rate gate metrics
	GateRequests *prometheus.CounterVec
	GateAdmitted *prometheus.CounterVec
	GateDenied   *prometheus.CounterVec
	GateWaitTime *prometheus.HistogramVec
	GatePeriod   *prometheus.GaugeVec

	// Worker pool metrics
	WorkerPoolSize    *prometheus.GaugeVec
	WorkerPoolActive  *prometheus.GaugeVec
	WorkerPoolQueued  *prometheus.GaugeVec
	TasksCompleted    *prometheus.CounterVec
	TasksFailed       *prometheus.CounterVec
	TaskExecutionTime *prometheus.HistogramVec

	// Scheduler metrics
	ScheduledRuns     *prometheus.CounterVec
	ScheduledFailures *prometheus.CounterVec
	ScheduledSkips    *prometheus.CounterVec

	// Sink metrics
	SinkWrites  *prometheus.CounterVec
	SinkErrors  *prometheus.CounterVec
	SinkRecords *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry bound to prometheus.DefaultRegisterer.
// It is created on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig is like Register but panics if registration fails.
func NewRegistryWithConfig(cfg Config) *Registry {
	r, err := Register(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Register creates a registry honoring the namespace and constant labels in cfg
// and registers its collectors with cfg.Registry.
//
// A collector that is already registered with an identical description is
// reused, so several components may share one registerer. Any other
// registration failure is returned.
func Register(cfg Config) (*Registry, error) {
	b := &builder{reg: cfg.Registry, ns: cfg.Namespace, labels: cfg.Labels}
	if b.reg == nil {
		b.reg = prometheus.DefaultRegisterer
	}
	if b.ns == "" {
		b.ns = DefaultNamespace
	}
	r := b.build()
	if b.err != nil {
		return nil, b.err
	}
	return r, nil
}

// IsDefault reports whether cfg describes the collectors returned by Default.
func IsDefault(cfg Config) bool {
	return (cfg.Registry == nil || cfg.Registry == prometheus.DefaultRegisterer) &&
		(cfg.Namespace == "" || cfg.Namespace == DefaultNamespace) &&
		len(cfg.Labels) == 0
}

type builder struct {
	reg    prometheus.Registerer
	ns     string
	labels prometheus.Labels
	err    error
}

func register[C prometheus.Collector](b *builder, name string, c C) C {
	if b.err != nil {
		return c
	}
	if err := b.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		b.err = fmt.Errorf("metrics: register %s: %w", name, err)
	}
	return c
}

func (b *builder) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return register(b, subsystem+"_"+name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   b.ns,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: b.labels,
	}, labels))
}

func (b *builder) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return register(b, subsystem+"_"+name, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   b.ns,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: b.labels,
	}, labels))
}

func (b *builder) histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return register(b, subsystem+"_"+name, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   b.ns,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: b.labels,
	}, labels))
}

func (b *builder) build() *Registry {
	counter, gauge, histogram := b.counter, b.gauge, b.histogram

	// Gate waits are bounded by one period, which for per-minute quotas
	// is often several seconds.
	waitBuckets := []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 4, 8, 15, 30, 60}

	return &Registry{
		GateRequests: counter("gate", "requests_total",
			"Total number of admission requests", "limiter_type", "limiter_name"),
		GateAdmitted: counter("gate", "admitted_total",
			"Total number of admitted callers", "limiter_type", "limiter_name"),
		GateDenied: counter("gate", "denied_total",
			"Total number of admissions abandoned or refused", "limiter_type", "limiter_name"),
		GateWaitTime: histogram("gate", "wait_duration_seconds",
			"Time spent waiting for admission", waitBuckets, "limiter_type", "limiter_name"),
		GatePeriod: gauge("gate", "period_seconds",
			"Configured minimum interval between admissions", "limiter_type", "limiter_name"),

		WorkerPoolSize: gauge("workerpool", "size",
			"Current worker pool size", "pool_name"),
		WorkerPoolActive: gauge("workerpool", "active_workers",
			"Number of active workers", "pool_name"),
		WorkerPoolQueued: gauge("workerpool", "queued_tasks",
			"Number of queued tasks", "pool_name"),
		TasksCompleted: counter("workerpool", "tasks_completed_total",
			"Total number of tasks completed successfully", "pool_name"),
		TasksFailed: counter("workerpool", "tasks_failed_total",
			"Total number of tasks that failed", "pool_name"),
		TaskExecutionTime: histogram("workerpool", "task_duration_seconds",
			"Time spent executing tasks", prometheus.DefBuckets, "pool_name"),

		ScheduledRuns: counter("scheduler", "runs_total",
			"Total number of scheduled job runs", "job_id"),
		ScheduledFailures: counter("scheduler", "failures_total",
			"Total number of scheduled job runs that failed", "job_id"),
		ScheduledSkips: counter("scheduler", "skips_total",
			"Total number of runs skipped because the previous run was still active", "job_id"),

		SinkWrites: counter("sink", "writes_total",
			"Total number of reports written", "sink"),
		SinkErrors: counter("sink", "errors_total",
			"Total number of failed report writes", "sink"),
		SinkRecords: counter("sink", "records_total",
			"Total number of records written", "sink"),
	}
}
