// Package host assembles configuration, logging, telemetry and a service
// container into a runnable unit.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/timzifer/cqlreg/config"
	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/internal/logging"
	"github.com/timzifer/cqlreg/telemetry"
)

// Configuration sections read by the host itself.
const (
	LoggingSection   = "Logging"
	TelemetrySection = "Telemetry"
	HostSection      = "Host"
)

const defaultShutdownTimeout = 5 * time.Second

// ErrAlreadyBuilt is returned when Build is called twice on the same builder.
var ErrAlreadyBuilt = errors.New("host already built")

// Context is handed to deferred service registrations.
type Context struct {
	Configuration *config.Configuration
	Logger        zerolog.Logger
}

// Runner is a background worker started by Host.Run. It must return once ctx
// is done.
type Runner func(ctx context.Context, h *Host) error

// Builder collects configuration sources and service registrations.
type Builder struct {
	configuration *config.Builder
	services      *container.Collection
	registry      *prometheus.Registry
	logOutput     io.Writer
	configure     []func(Context, *container.Collection) error
	runners       []Runner
	built         bool
}

// NewBuilder returns a builder with no configuration sources.
func NewBuilder() *Builder {
	return &Builder{
		configuration: config.NewBuilder(),
		services:      container.NewCollection(),
		logOutput:     os.Stdout,
	}
}

// Configuration returns the configuration source builder.
func (b *Builder) Configuration() *config.Builder {
	return b.configuration
}

// Services returns the collection registrations are added to. Registrations
// made here see no configuration; use ConfigureServices for that.
func (b *Builder) Services() *container.Collection {
	return b.services
}

// ConfigureServices defers fn until Build, after configuration and logging
// are available.
func (b *Builder) ConfigureServices(fn func(Context, *container.Collection) error) *Builder {
	if fn != nil {
		b.configure = append(b.configure, fn)
	}
	return b
}

// AddRunner registers a background worker.
func (b *Builder) AddRunner(r Runner) *Builder {
	if r != nil {
		b.runners = append(b.runners, r)
	}
	return b
}

// UseRegistry sets the Prometheus registry. A private registry is created otherwise.
func (b *Builder) UseRegistry(reg *prometheus.Registry) *Builder {
	b.registry = reg
	return b
}

// UseLogOutput redirects the console log writer.
func (b *Builder) UseLogOutput(w io.Writer) *Builder {
	if w != nil {
		b.logOutput = w
	}
	return b
}

// Build loads configuration, sets up logging and telemetry, runs the deferred
// registrations and finalizes the service container.
func (b *Builder) Build() (*Host, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	conf, err := b.configuration.Build()
	if err != nil {
		return nil, fmt.Errorf("build configuration: %w", err)
	}

	var logCfg config.LoggingConfig
	if err := conf.Bind(LoggingSection, &logCfg); err != nil {
		return nil, err
	}
	logger, cleanup, err := logging.New(logCfg, b.logOutput)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Host, error) {
		cleanup()
		return nil, err
	}

	var telCfg config.TelemetryConfig
	if err := conf.Bind(TelemetrySection, &telCfg); err != nil {
		return fail(err)
	}
	registry := b.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	collector, err := telemetry.NewFromConfig(telCfg, registry)
	if err != nil {
		return fail(fmt.Errorf("setup telemetry: %w", err))
	}
	if telCfg.Enabled {
		telemetry.InstallDriverMetrics(registry)
	}

	var hostCfg config.HostConfig
	if err := conf.Bind(HostSection, &hostCfg); err != nil {
		return fail(err)
	}
	shutdown := hostCfg.ShutdownTimeout.Duration
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	if err := errors.Join(
		container.AddInstance(b.services, conf),
		container.AddInstance(b.services, logger),
		container.AddInstance(b.services, collector),
		container.AddInstance(b.services, registry),
	); err != nil {
		return fail(err)
	}
	ctx := Context{Configuration: conf, Logger: logger}
	for _, fn := range b.configure {
		if err := fn(ctx, b.services); err != nil {
			return fail(fmt.Errorf("configure services: %w", err))
		}
	}

	logger.Debug().
		Strs("files", conf.Files()).
		Bool("telemetry", telCfg.Enabled).
		Msg("host built")
	return &Host{
		Services:        b.services.Build(),
		Configuration:   conf,
		Logger:          logger,
		Telemetry:       collector,
		Registry:        registry,
		shutdownTimeout: shutdown,
		runners:         append([]Runner(nil), b.runners...),
		cleanup:         cleanup,
	}, nil
}

// Host is a built application. Close releases every constructed singleton.
type Host struct {
	Services      *container.Provider
	Configuration *config.Configuration
	Logger        zerolog.Logger
	Telemetry     telemetry.Collector
	Registry      *prometheus.Registry

	shutdownTimeout time.Duration
	runners         []Runner
	cleanup         func()

	closeOnce sync.Once
	closeErr  error
}

// ShutdownTimeout is the time runners get to stop after cancellation.
func (h *Host) ShutdownTimeout() time.Duration {
	return h.shutdownTimeout
}

// Run starts the runners and blocks until ctx is done or a runner fails. The
// host is closed before Run returns.
func (h *Host) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(h.runners))
	var wg sync.WaitGroup
	for _, runner := range h.runners {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			if err := r(runCtx, h); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(runner)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		h.Logger.Error().Err(runErr).Msg("runner stopped")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(h.shutdownTimeout):
		h.Logger.Warn().Dur("timeout", h.shutdownTimeout).Msg("runners did not stop in time")
	}
	return errors.Join(runErr, h.Close())
}

// Close tears down built services and flushes logging. It is safe to call more than once.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.Services.Close()
		if h.cleanup != nil {
			h.cleanup()
		}
	})
	return h.closeErr
}
