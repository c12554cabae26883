// Package metrics provides Prometheus instrumentation for rateguard components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Rate gates (admission requests, admitted and abandoned callers, wait times)
//   - Worker pools (pool size, active workers, queued tasks, task outcomes)
//   - Scheduled batch runs (runs, failures, skipped overlaps)
//   - Result sinks (reports and records written, write errors)
//
// # Quick Start
//
//	g, _ := gate.New(15)
//	mg, err := gate.WithMetrics(g, "gemini", metrics.DefaultConfig())
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Every gate built from DefaultConfig shares the collectors of Default.
// Use a custom Prometheus registry for isolation:
//
//	reg := prometheus.NewRegistry()
//	registry, err := metrics.Register(metrics.Config{
//		Registry:  reg,
//		Namespace: "myapp",
//	})
//
// Registering the same collectors on one registerer twice reuses the first
// set. A conflicting registration is returned as an error.
//
// # Available Metrics
//
//   - rateguard_gate_requests_total
//   - rateguard_gate_admitted_total
//   - rateguard_gate_denied_total
//   - rateguard_gate_wait_duration_seconds
//   - rateguard_gate_period_seconds
//   - rateguard_workerpool_size
//   - rateguard_workerpool_active_workers
//   - rateguard_workerpool_queued_tasks
//   - rateguard_workerpool_tasks_completed_total
//   - rateguard_workerpool_tasks_failed_total
//   - rateguard_workerpool_task_duration_seconds
//   - rateguard_scheduler_runs_total
//   - rateguard_scheduler_failures_total
//   - rateguard_scheduler_skips_total
//   - rateguard_sink_writes_total
//   - rateguard_sink_errors_total
//   - rateguard_sink_records_total
//
// # Labels
//
//   - limiter_type: always "rate_gate" for gates
//   - limiter_name: user-provided name for the gate instance
//   - pool_name: user-provided name for the worker pool instance
//   - job_id: scheduler job identifier
//   - sink: "file" or "redis"
package metrics
