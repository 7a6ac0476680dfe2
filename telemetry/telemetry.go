package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timzifer/cqlreg/config"
)

// Collector captures events emitted while clients are built and configuration
// is reloaded. It satisfies cassandra.BuildObserver.
//
// Hooks run inline with client resolution, so implementations must not block.
type Collector interface {
	IncHotReload(file string)
	ClientBuilt(name string, elapsed time.Duration)
	ClientFailed(name string, err error)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncHotReload(string)               {}
func (noopCollector) ClientBuilt(string, time.Duration) {}
func (noopCollector) ClientFailed(string, error)        {}

// PrometheusCollector exposes registry counters via Prometheus.
type PrometheusCollector struct {
	hotReloads    *prometheus.CounterVec
	clientsBuilt  *prometheus.CounterVec
	buildFailures *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the collector metrics with reg. Metrics
// already present in reg are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hotReloads, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cqlreg_config_hot_reload_total",
		Help: "Number of hot reload operations triggered per configuration source file.",
	}, []string{"file"}))
	if err != nil {
		return nil, err
	}
	built, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cqlreg_clients_built_total",
		Help: "Number of Cassandra clients built per registered name.",
	}, []string{"client"}))
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cqlreg_client_build_failures_total",
		Help: "Number of failed Cassandra client constructions per registered name.",
	}, []string{"client"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cqlreg_client_build_duration_seconds",
		Help:    "Time spent translating options into a Cassandra client.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"client"}))
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{
		hotReloads:    hotReloads,
		clientsBuilt:  built,
		buildFailures: failures,
		buildDuration: duration,
	}, nil
}

// NewFromConfig returns the collector selected by cfg. A disabled
// configuration yields Noop.
func NewFromConfig(cfg config.TelemetryConfig, reg prometheus.Registerer) (Collector, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "prometheus":
		collector, err := NewPrometheusCollector(reg)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}

// IncHotReload increments the counter for the provided file path.
func (p *PrometheusCollector) IncHotReload(file string) {
	if p == nil || p.hotReloads == nil {
		return
	}
	p.hotReloads.WithLabelValues(file).Inc()
}

// ClientBuilt records a successful construction.
func (p *PrometheusCollector) ClientBuilt(name string, elapsed time.Duration) {
	if p == nil || p.clientsBuilt == nil {
		return
	}
	p.clientsBuilt.WithLabelValues(name).Inc()
	p.buildDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ClientFailed records a failed construction.
func (p *PrometheusCollector) ClientFailed(name string, _ error) {
	if p == nil || p.buildFailures == nil {
		return
	}
	p.buildFailures.WithLabelValues(name).Inc()
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}
