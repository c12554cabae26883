package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateguard/internal/config"
	"github.com/vnykmshr/rateguard/internal/observability"
	"github.com/vnykmshr/rateguard/pkg/batch"
	"github.com/vnykmshr/rateguard/pkg/client"
	"github.com/vnykmshr/rateguard/pkg/metrics"
	"github.com/vnykmshr/rateguard/pkg/ratelimit/gate"
	"github.com/vnykmshr/rateguard/pkg/sink"
)

// app holds the components shared by run and schedule.
type app struct {
	cfg           *config.Config
	logger        *zap.Logger
	prom          *prometheus.Registry
	metrics       *metrics.Registry
	gate          *gate.MetricsGate
	runner        *batch.Runner
	sink          sink.Sink
	target        string
	closers       []func() error
	metricsServer *observability.MetricsServer
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, prom: prometheus.NewRegistry()}
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewRegistry(a.prom)

	g, err := gate.NewWithConfig(gate.Config{RPM: cfg.Gate.RPM, Unit: cfg.Gate.Unit})
	if err != nil {
		return nil, err
	}
	a.gate = gate.WithRegistry(g, "generator", a.metrics)

	var gen client.Generator = client.EchoGenerator{}
	if !cfg.DryRun {
		hg := client.NewHTTPGenerator(cfg.Client.BaseURL, cfg.Client.APIKey)
		hg.Timeout = cfg.Client.Timeout
		gen = hg
	}

	a.runner, err = batch.NewRunner(batch.Config{
		Generator: gen,
		Gate:      a.gate,
		Model:     cfg.Client.Model,
		Workers:   cfg.Batch.Workers,
		Metrics:   a.metrics,
		Progress: func(done, total int, r batch.Result) {
			if r.Err != nil {
				logger.Warn("Record failed", zap.String("id", r.ID), zap.Error(r.Err))
			}
			logger.Debug("Record done",
				zap.String("id", r.ID),
				zap.Int("done", done),
				zap.Int("total", total),
				zap.Duration("duration", r.Duration))
		},
	})
	if err != nil {
		return nil, err
	}

	if err := a.buildSink(); err != nil {
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		a.metricsServer, err = observability.StartMetricsServer(cfg.Metrics.Addr, a.prom, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("metrics server: %w", err)
		}
	}

	logger.Info("Gate ready",
		zap.Float64("rpm", a.gate.RPM()),
		zap.Duration("period", a.gate.Period()),
		zap.Int("workers", cfg.Batch.Workers),
		zap.Bool("dry_run", cfg.DryRun))
	return a, nil
}

func (a *app) buildSink() error {
	switch a.cfg.Output.Kind {
	case config.OutputRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		s, err := sink.NewRedisSink(sink.RedisConfig{
			Redis:     rdb,
			KeyPrefix: a.cfg.Redis.KeyPrefix,
			TTL:       a.cfg.Redis.TTL,
			Timeout:   10 * time.Second,
			Metrics:   a.metrics,
		})
		if err != nil {
			_ = rdb.Close()
			return err
		}
		a.closers = append(a.closers, rdb.Close)
		a.sink = s
		a.target = "redis://" + a.cfg.Redis.Addr + "/" + a.cfg.Redis.KeyPrefix
	default:
		a.sink = &sink.FileSink{
			Path:    a.cfg.Output.Path,
			Dir:     a.cfg.Output.Dir,
			Metrics: a.metrics,
		}
	}
	return nil
}

// describeTarget names where report was stored.
func (a *app) describeTarget(report batch.Report) string {
	switch s := a.sink.(type) {
	case *sink.FileSink:
		return s.Target(report)
	case *sink.RedisSink:
		return s.Key(report.RunID)
	}
	return a.target
}

// loadRecords reads the configured input file.
func (a *app) loadRecords() ([]batch.Record, error) {
	if a.cfg.Batch.Input == "" {
		return nil, fmt.Errorf("no input file: pass --input or set batch.input")
	}
	f, err := os.Open(a.cfg.Batch.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck // read-only

	records, err := batch.LoadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Batch.Input, err)
	}
	return records, nil
}

// store writes report, even when ctx was cancelled mid-run.
func (a *app) store(ctx context.Context, report batch.Report) error {
	if err := a.sink.Write(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	a.logger.Info("Results stored",
		zap.String("run_id", report.RunID),
		zap.String("target", a.describeTarget(report)),
		zap.Int("records", len(report.Results)))
	return nil
}

func (a *app) close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
}
