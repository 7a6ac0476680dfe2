package cassandra

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gocql/gocql"
)

// DriverObservers are the driver hooks a metrics provider installs on a cluster.
// Nil members are left unset.
type DriverObservers struct {
	Query   gocql.QueryObserver
	Batch   gocql.BatchObserver
	Connect gocql.ConnectObserver
}

// DriverMetricsProvider turns driver events into metrics.
type DriverMetricsProvider interface {
	// Observers returns the hooks for one client. options is nil when the
	// caller requested metrics without tuning.
	Observers(session string, options *DriverMetricsOptions) (DriverObservers, error)
}

var (
	metricsProvidersMu sync.RWMutex
	metricsProviders   = map[string]DriverMetricsProvider{}
)

// RegisterMetricsProvider makes provider selectable by name from configuration
// text, e.g. metric_options: {provider: prometheus}.
func RegisterMetricsProvider(name string, provider DriverMetricsProvider) {
	metricsProvidersMu.Lock()
	defer metricsProvidersMu.Unlock()
	if provider == nil {
		delete(metricsProviders, name)
		return
	}
	metricsProviders[name] = provider
}

// LookupMetricsProvider returns the provider registered under name.
func LookupMetricsProvider(name string) (DriverMetricsProvider, error) {
	metricsProvidersMu.RLock()
	defer metricsProvidersMu.RUnlock()
	provider, ok := metricsProviders[name]
	if !ok {
		return nil, fmt.Errorf("unsupported metrics provider: %s", name)
	}
	return provider, nil
}

// MetricsProviders lists the registered provider names.
func MetricsProviders() []string {
	metricsProvidersMu.RLock()
	defer metricsProvidersMu.RUnlock()
	names := make([]string, 0, len(metricsProviders))
	for name := range metricsProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
