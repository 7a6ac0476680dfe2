package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/timzifer/cqlreg/cassandra"
)

// DriverMetricsProviderName is the name NewDriverMetrics registers under.
const DriverMetricsProviderName = "prometheus"

// Names accepted in DriverMetricsOptions.DisabledMetrics.
const (
	MetricQueries        = "queries"
	MetricQueryLatency   = "query_latency"
	MetricBatches        = "batches"
	MetricConnections    = "connections"
	MetricConnectLatency = "connect_latency"
)

const defaultNamespace = "cassandra"

// ErrBucketMismatch is returned when a client asks for latency buckets that
// differ from those of a histogram already registered under the same name and
// const labels.
var ErrBucketMismatch = errors.New("latency buckets differ from the registered histogram")

// DriverMetrics exports gocql observer events to Prometheus. Collectors are
// shared by every client with the same namespace and const labels.
type DriverMetrics struct {
	reg prometheus.Registerer

	mu      sync.Mutex
	buckets map[string][]float64
}

// NewDriverMetrics returns a provider registering its metrics with reg.
func NewDriverMetrics(reg prometheus.Registerer) *DriverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DriverMetrics{reg: reg, buckets: make(map[string][]float64)}
}

// InstallDriverMetrics makes the Prometheus provider selectable by name.
func InstallDriverMetrics(reg prometheus.Registerer) *DriverMetrics {
	provider := NewDriverMetrics(reg)
	cassandra.RegisterMetricsProvider(DriverMetricsProviderName, provider)
	return provider
}

var _ cassandra.DriverMetricsProvider = (*DriverMetrics)(nil)

// histogram registers a histogram vector, or returns the one already
// registered when its buckets match.
func (d *DriverMetrics) histogram(opts prometheus.HistogramOpts, labels []string) (*prometheus.HistogramVec, error) {
	key := histogramKey(opts)
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.buckets[key]; ok && !slices.Equal(existing, opts.Buckets) {
		return nil, fmt.Errorf("%w: %s has %v, requested %v", ErrBucketMismatch, key, existing, opts.Buckets)
	}
	vec, err := register(d.reg, prometheus.NewHistogramVec(opts, labels))
	if err != nil {
		return nil, err
	}
	d.buckets[key] = slices.Clone(opts.Buckets)
	return vec, nil
}

func histogramKey(opts prometheus.HistogramOpts) string {
	names := make([]string, 0, len(opts.ConstLabels))
	for name := range opts.ConstLabels {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name))
	for _, name := range names {
		fmt.Fprintf(&b, ",%s=%q", name, opts.ConstLabels[name])
	}
	return b.String()
}

// Observers implements cassandra.DriverMetricsProvider.
func (d *DriverMetrics) Observers(session string, opts *cassandra.DriverMetricsOptions) (cassandra.DriverObservers, error) {
	namespace := defaultNamespace
	var constLabels prometheus.Labels
	buckets := prometheus.DefBuckets
	if opts != nil {
		if opts.Namespace != "" {
			namespace = opts.Namespace
		}
		if len(opts.ConstLabels) > 0 {
			constLabels = prometheus.Labels(opts.ConstLabels)
		}
		if len(opts.LatencyBuckets) > 0 {
			buckets = opts.LatencyBuckets
		}
	}

	var observers cassandra.DriverObservers
	q := &queryObserver{session: session}
	var err error
	if opts.Enabled(MetricQueries) {
		if q.total, err = register(d.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queries_total",
			Help:        "Queries executed per session, keyspace and outcome.",
			ConstLabels: constLabels,
		}, []string{"session", "keyspace", "outcome"})); err != nil {
			return cassandra.DriverObservers{}, err
		}
	}
	if opts.Enabled(MetricQueryLatency) {
		if q.latency, err = d.histogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "query_duration_seconds",
			Help:        "Query round trip time per session and keyspace.",
			ConstLabels: constLabels,
			Buckets:     buckets,
		}, []string{"session", "keyspace"}); err != nil {
			return cassandra.DriverObservers{}, err
		}
	}
	if q.total != nil || q.latency != nil {
		observers.Query = q
	}

	if opts.Enabled(MetricBatches) {
		total, err := register(d.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "batches_total",
			Help:        "Batches executed per session, keyspace and outcome.",
			ConstLabels: constLabels,
		}, []string{"session", "keyspace", "outcome"}))
		if err != nil {
			return cassandra.DriverObservers{}, err
		}
		observers.Batch = &batchObserver{session: session, total: total}
	}

	c := &connectObserver{session: session}
	if opts.Enabled(MetricConnections) {
		if c.total, err = register(d.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connections_total",
			Help:        "Connection attempts per session and outcome.",
			ConstLabels: constLabels,
		}, []string{"session", "outcome"})); err != nil {
			return cassandra.DriverObservers{}, err
		}
	}
	if opts.Enabled(MetricConnectLatency) {
		if c.latency, err = d.histogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "connect_duration_seconds",
			Help:        "Time spent dialing a host per session.",
			ConstLabels: constLabels,
			Buckets:     buckets,
		}, []string{"session"}); err != nil {
			return cassandra.DriverObservers{}, err
		}
	}
	if c.total != nil || c.latency != nil {
		observers.Connect = c
	}
	return observers, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type queryObserver struct {
	session string
	total   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func (o *queryObserver) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	if o.total != nil {
		o.total.WithLabelValues(o.session, q.Keyspace, outcome(q.Err)).Inc()
	}
	if o.latency != nil {
		o.latency.WithLabelValues(o.session, q.Keyspace).Observe(q.End.Sub(q.Start).Seconds())
	}
}

type batchObserver struct {
	session string
	total   *prometheus.CounterVec
}

func (o *batchObserver) ObserveBatch(_ context.Context, b gocql.ObservedBatch) {
	o.total.WithLabelValues(o.session, b.Keyspace, outcome(b.Err)).Inc()
}

type connectObserver struct {
	session string
	total   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func (o *connectObserver) ObserveConnect(c gocql.ObservedConnect) {
	if o.total != nil {
		o.total.WithLabelValues(o.session, outcome(c.Err)).Inc()
	}
	if o.latency != nil {
		o.latency.WithLabelValues(o.session).Observe(c.End.Sub(c.Start).Seconds())
	}
}
