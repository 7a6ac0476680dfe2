package cassandra

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/options"
)

// BuildObserver is notified about every client construction.
type BuildObserver interface {
	ClientBuilt(name string, elapsed time.Duration)
	ClientFailed(name string, err error)
}

// UseBuilderFactory replaces the ClusterBuilder used for every client of c.
func UseBuilderFactory(c *container.Collection, factory BuilderFactory) error {
	return container.AddInstance(c, factory)
}

// UseBuildObserver installs observer for every client of c.
func UseBuildObserver(c *container.Collection, observer BuildObserver) error {
	return container.AddInstance(c, observer)
}

// clientFactory builds the client name from the options stored under optionsName.
func clientFactory(name, optionsName string) func(p *container.Provider) (*Client, error) {
	return func(p *container.Provider) (*Client, error) {
		store, err := container.GetRequired[*options.Store[ClientOptions]](p)
		if err != nil {
			return nil, err
		}
		opts, err := store.Get(optionsName)
		if err != nil {
			return nil, err
		}

		builder, err := newBuilder(p)
		if err != nil {
			return nil, err
		}
		observer, _, err := container.Get[BuildObserver](p)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		client, err := Translate(opts.snapshot(), builder)
		if err != nil {
			if observer != nil {
				observer.ClientFailed(name, err)
			}
			return nil, err
		}
		if observer != nil {
			observer.ClientBuilt(name, time.Since(start))
		}
		return client, nil
	}
}

func newBuilder(p *container.Provider) (Builder, error) {
	factory, ok, err := container.Get[BuilderFactory](p)
	if err != nil {
		return nil, err
	}
	if ok {
		return factory(), nil
	}
	logger, ok, err := container.Get[zerolog.Logger](p)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger = zerolog.Nop()
	}
	return NewClusterBuilder(logger), nil
}
