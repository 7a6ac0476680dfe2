package host

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/cqlreg/config"
	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/telemetry"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestBuildRegistersHostServices(t *testing.T) {
	var logs bytes.Buffer
	b := NewBuilder().UseLogOutput(&logs)
	b.Configuration().AddYAML("inline", []byte(`
Logging:
  level: debug
Telemetry:
  enabled: true
Host:
  shutdown_timeout: 250ms
Greeting:
  text: hello
`))

	var seen string
	b.ConfigureServices(func(ctx Context, services *container.Collection) error {
		var greeting struct {
			Text string `yaml:"text"`
		}
		if err := ctx.Configuration.Bind("Greeting", &greeting); err != nil {
			return err
		}
		seen = greeting.Text
		return container.AddNamedSingleton(services, "greeting", func(*container.Provider) (string, error) {
			return greeting.Text + " world", nil
		})
	})

	h, err := b.Build()
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, "hello", seen)
	require.Equal(t, 250*time.Millisecond, h.ShutdownTimeout())
	require.IsType(t, &telemetry.PrometheusCollector{}, h.Telemetry)

	greeting, err := container.GetRequiredNamed[string](h.Services, "greeting")
	require.NoError(t, err)
	require.Equal(t, "hello world", greeting)

	conf, err := container.GetRequired[*config.Configuration](h.Services)
	require.NoError(t, err)
	require.Same(t, h.Configuration, conf)

	logger, err := container.GetRequired[zerolog.Logger](h.Services)
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	require.Contains(t, logs.String(), "host built")

	reg, err := container.GetRequired[*prometheus.Registry](h.Services)
	require.NoError(t, err)
	require.Same(t, h.Registry, reg)
}

func TestBuildDefaults(t *testing.T) {
	h, err := NewBuilder().UseLogOutput(&bytes.Buffer{}).Build()
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, defaultShutdownTimeout, h.ShutdownTimeout())
	require.Equal(t, telemetry.Noop(), h.Telemetry)
	require.Equal(t, zerolog.InfoLevel, h.Logger.GetLevel())
}

func TestBuildTwiceFails(t *testing.T) {
	b := NewBuilder().UseLogOutput(&bytes.Buffer{})
	h, err := b.Build()
	require.NoError(t, err)
	defer h.Close()

	_, err = b.Build()
	require.ErrorIs(t, err, ErrAlreadyBuilt)
}

func TestBuildFailures(t *testing.T) {
	b := NewBuilder().UseLogOutput(&bytes.Buffer{})
	b.Configuration().AddYAML("bad", []byte("Logging:\n  level: loud\n"))
	_, err := b.Build()
	require.ErrorContains(t, err, "parse log level")

	b = NewBuilder().UseLogOutput(&bytes.Buffer{})
	b.Configuration().AddYAML("bad", []byte("Telemetry:\n  enabled: true\n  provider: statsd\n"))
	_, err = b.Build()
	require.ErrorContains(t, err, "setup telemetry")

	boom := errors.New("boom")
	b = NewBuilder().UseLogOutput(&bytes.Buffer{})
	b.ConfigureServices(func(Context, *container.Collection) error { return boom })
	_, err = b.Build()
	require.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancelAndClosesServices(t *testing.T) {
	res := &closer{}
	b := NewBuilder().UseLogOutput(&bytes.Buffer{})
	require.NoError(t, container.AddSingleton(b.Services(), func(*container.Provider) (*closer, error) {
		return res, nil
	}))
	started := make(chan struct{})
	b.AddRunner(func(ctx context.Context, h *Host) error {
		_, err := container.GetRequired[*closer](h.Services)
		if err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	h, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	require.True(t, res.closed)
	require.NoError(t, h.Close())
}

func TestRunReturnsRunnerError(t *testing.T) {
	boom := errors.New("boom")
	b := NewBuilder().UseLogOutput(&bytes.Buffer{})
	b.AddRunner(func(context.Context, *Host) error { return boom })
	h, err := b.Build()
	require.NoError(t, err)

	require.ErrorIs(t, h.Run(context.Background()), boom)
}
