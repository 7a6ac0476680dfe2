package options

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/cqlreg/config"
	"github.com/timzifer/cqlreg/internal/argument"
)

type target struct {
	Keyspace string   `yaml:"keyspace"`
	Hosts    []string `yaml:"hosts"`
	Port     int      `yaml:"port"`
}

func TestActionsRunInRegistrationOrder(t *testing.T) {
	reg := NewRegistry[target]()
	require.NoError(t, reg.Configure("east", func(o *target) { o.Keyspace = "code" }))
	require.NoError(t, reg.Bind("east", "Client:east"))
	require.NoError(t, reg.Configure("east", func(o *target) { o.Hosts = append(o.Hosts, "late") }))
	require.NoError(t, reg.PostConfigure("east", func(o *target) { o.Port++ }))

	conf, err := config.NewBuilder().AddYAML("inline", []byte("Client:\n  east:\n    keyspace: bound\n    hosts: [a]\n    port: 9042\n")).Build()
	require.NoError(t, err)

	got, err := reg.Store(conf).Get("east")
	require.NoError(t, err)
	require.Equal(t, "bound", got.Keyspace)
	require.Equal(t, []string{"a", "late"}, got.Hosts)
	require.Equal(t, 9043, got.Port)
}

func TestUnknownNameYieldsZeroValue(t *testing.T) {
	got, err := NewRegistry[target]().Store(nil).Get("missing")
	require.NoError(t, err)
	require.Equal(t, target{}, got)
}

func TestStoreMemoizesPerName(t *testing.T) {
	reg := NewRegistry[target]()
	var calls atomic.Int32
	require.NoError(t, reg.Configure("a", func(o *target) { calls.Add(1) }))
	store := reg.Store(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Get("a")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestRegistrySealedAfterStore(t *testing.T) {
	reg := NewRegistry[target]()
	reg.Store(nil)
	err := reg.Configure("late", func(*target) {})
	require.ErrorIs(t, err, ErrSealed)
}

func TestInvalidArguments(t *testing.T) {
	reg := NewRegistry[target]()
	require.ErrorIs(t, reg.Configure("", func(*target) {}), argument.ErrInvalid)
	require.ErrorIs(t, reg.Configure("a", nil), argument.ErrInvalid)
	require.ErrorIs(t, reg.Bind("a", ""), argument.ErrInvalid)
	require.ErrorIs(t, reg.PostConfigure("a", nil), argument.ErrInvalid)
	require.ErrorIs(t, reg.Validate("a", nil), argument.ErrInvalid)
	require.False(t, reg.Has("a"))
}

func TestBuilderCollectsErrorsAndValidates(t *testing.T) {
	reg := NewRegistry[target]()
	b := reg.Builder("svc").
		Configure(func(o *target) { o.Port = -1 }).
		Validate(func(o *target) error {
			if o.Port < 0 {
				return errors.New("port must not be negative")
			}
			return nil
		})
	require.NoError(t, b.Err())
	require.Equal(t, "svc", b.Name())
	require.Equal(t, []string{"svc"}, reg.Names())

	_, err := reg.Store(nil).Get("svc")
	require.ErrorContains(t, err, "port must not be negative")

	broken := NewRegistry[target]().Builder("x").Configure(nil).BindConfiguration("")
	require.ErrorIs(t, broken.Err(), argument.ErrInvalid)
}
