package gate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/rateguard/pkg/metrics"
)

const limiterType = "rate_gate"

// MetricsGate wraps a RateGate with Prometheus metrics collection.
type MetricsGate struct {
	gate     *RateGate
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

// NewWithMetrics creates a gate with metrics enabled on a private registry.
func NewWithMetrics(rpm float64, name string) (*MetricsGate, error) {
	g, err := New(rpm)
	if err != nil {
		return nil, err
	}
	return WithMetrics(g, name, metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
}

// WithMetrics decorates g so every admission is recorded under name.
// Gates configured with the default registerer share metrics.Default.
func WithMetrics(g *RateGate, name string, config metrics.Config) (*MetricsGate, error) {
	mg := &MetricsGate{gate: g, name: name}
	if err := mg.EnableMetrics(config); err != nil {
		return nil, err
	}
	return mg, nil
}

// WithRegistry decorates g using an existing metrics registry.
func WithRegistry(g *RateGate, name string, registry *metrics.Registry) *MetricsGate {
	mg := &MetricsGate{gate: g, name: name}
	mg.registry.Store(registry)
	mg.enabled.Store(true)
	mg.publishPeriod(registry)
	return mg
}

// Admit blocks until the caller may proceed.
func (mg *MetricsGate) Admit() {
	_ = mg.AdmitContext(context.Background())
}

// AdmitContext blocks until the caller may proceed or ctx is done.
func (mg *MetricsGate) AdmitContext(ctx context.Context) error {
	registry := mg.activeRegistry()
	if registry == nil {
		return mg.gate.AdmitContext(ctx)
	}

	registry.GateRequests.WithLabelValues(limiterType, mg.name).Inc()
	start := mg.gate.clock.Now()

	err := mg.gate.AdmitContext(ctx)

	registry.GateWaitTime.WithLabelValues(limiterType, mg.name).Observe(mg.gate.clock.Now().Sub(start).Seconds())
	if err != nil {
		registry.GateDenied.WithLabelValues(limiterType, mg.name).Inc()
		return err
	}
	registry.GateAdmitted.WithLabelValues(limiterType, mg.name).Inc()
	return nil
}

// TryAdmit admits the caller only if no waiting is needed.
func (mg *MetricsGate) TryAdmit() bool {
	registry := mg.activeRegistry()
	admitted := mg.gate.TryAdmit()
	if registry == nil {
		return admitted
	}

	registry.GateRequests.WithLabelValues(limiterType, mg.name).Inc()
	if admitted {
		registry.GateAdmitted.WithLabelValues(limiterType, mg.name).Inc()
	} else {
		registry.GateDenied.WithLabelValues(limiterType, mg.name).Inc()
	}
	return admitted
}

// Period returns the minimum interval between admissions.
func (mg *MetricsGate) Period() time.Duration {
	return mg.gate.Period()
}

// RPM returns the configured rate.
func (mg *MetricsGate) RPM() float64 {
	return mg.gate.RPM()
}

// Name returns the limiter_name label value.
func (mg *MetricsGate) Name() string {
	return mg.name
}

// Unwrap returns the underlying gate.
func (mg *MetricsGate) Unwrap() *RateGate {
	return mg.gate
}

// EnableMetrics enables metrics collection.
func (mg *MetricsGate) EnableMetrics(config metrics.Config) error {
	if !config.Enabled {
		mg.DisableMetrics()
		return nil
	}

	registry := metrics.Default()
	if !metrics.IsDefault(config) {
		var err error
		if registry, err = metrics.Register(config); err != nil {
			return err
		}
	}
	mg.registry.Store(registry)
	mg.enabled.Store(true)
	mg.publishPeriod(registry)
	return nil
}

// DisableMetrics disables metrics collection.
func (mg *MetricsGate) DisableMetrics() {
	mg.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mg *MetricsGate) MetricsEnabled() bool {
	return mg.enabled.Load()
}

func (mg *MetricsGate) activeRegistry() *metrics.Registry {
	if !mg.enabled.Load() {
		return nil
	}
	return mg.registry.Load()
}

func (mg *MetricsGate) publishPeriod(registry *metrics.Registry) {
	registry.GatePeriod.WithLabelValues(limiterType, mg.name).Set(mg.gate.Period().Seconds())
}

var _ metrics.Instrumentable = (*MetricsGate)(nil)
