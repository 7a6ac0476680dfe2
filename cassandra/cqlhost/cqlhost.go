// Package cqlhost registers and resolves named Cassandra clients on a
// host.Builder / host.Host.
package cqlhost

import (
	"github.com/timzifer/cqlreg/cassandra"
	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/host"
	"github.com/timzifer/cqlreg/internal/argument"
	"github.com/timzifer/cqlreg/options"
	"github.com/timzifer/cqlreg/telemetry"
)

// services returns the collection of b after installing the host telemetry
// collector as build observer.
func services(b *host.Builder) (*container.Collection, error) {
	if err := argument.NotNil("builder", b); err != nil {
		return nil, err
	}
	c := b.Services()
	if !container.Contains[cassandra.BuildObserver](c, "") {
		err := container.AddSingleton(c, func(p *container.Provider) (cassandra.BuildObserver, error) {
			collector, ok, err := container.Get[telemetry.Collector](p)
			if err != nil {
				return nil, err
			}
			if !ok {
				return telemetry.Noop(), nil
			}
			return collector, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func provider(h *host.Host) (*container.Provider, error) {
	if err := argument.NotNil("host", h); err != nil {
		return nil, err
	}
	return h.Services, nil
}

// AddClientOptions registers configure for the options stored under name.
func AddClientOptions(b *host.Builder, name string, configure func(*cassandra.ClientOptions)) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.AddClientOptions(c, name, configure)
}

// AddClientOptionsAsDefault registers configure for the default options.
func AddClientOptionsAsDefault(b *host.Builder, configure func(*cassandra.ClientOptions)) error {
	return AddClientOptions(b, cassandra.DefaultOptionsName, configure)
}

// ConfigureClientOptions hands the options builder of name to configure.
func ConfigureClientOptions(b *host.Builder, name string, configure func(*options.Builder[cassandra.ClientOptions])) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.ConfigureClientOptions(c, name, configure)
}

// ConfigureClientOptionsAsDefault hands the default options builder to configure.
func ConfigureClientOptionsAsDefault(b *host.Builder, configure func(*options.Builder[cassandra.ClientOptions])) error {
	return ConfigureClientOptions(b, cassandra.DefaultOptionsName, configure)
}

// BindClientOptions binds the options of name from the host configuration.
func BindClientOptions(b *host.Builder, name string, opts ...cassandra.BindOption) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.BindClientOptions(c, name, opts...)
}

// BindClientOptionsAsDefault binds the default options from the host configuration.
func BindClientOptionsAsDefault(b *host.Builder, opts ...cassandra.BindOption) error {
	return BindClientOptions(b, cassandra.DefaultOptionsName, opts...)
}

// AddClientFromOptions registers the client name built from the options under optionsName.
func AddClientFromOptions(b *host.Builder, name, optionsName string) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.AddClientFromOptions(c, name, optionsName)
}

// AddClientFromOptionsAsDefault registers the default client from the options under optionsName.
func AddClientFromOptionsAsDefault(b *host.Builder, optionsName string) error {
	return AddClientFromOptions(b, cassandra.DefaultOptionsName, optionsName)
}

// AddClient registers options and client under name.
func AddClient(b *host.Builder, name string, configure func(*cassandra.ClientOptions)) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.AddClient(c, name, configure)
}

// AddClientAsDefault registers the default options and client.
func AddClientAsDefault(b *host.Builder, configure func(*cassandra.ClientOptions)) error {
	return AddClient(b, cassandra.DefaultOptionsName, configure)
}

// ConfigureClient registers options through a builder and the client under name.
func ConfigureClient(b *host.Builder, name string, configure func(*options.Builder[cassandra.ClientOptions])) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.ConfigureClient(c, name, configure)
}

// ConfigureClientAsDefault is ConfigureClient for the default name.
func ConfigureClientAsDefault(b *host.Builder, configure func(*options.Builder[cassandra.ClientOptions])) error {
	return ConfigureClient(b, cassandra.DefaultOptionsName, configure)
}

// AddClientFromConfig binds the options of name and registers the client.
func AddClientFromConfig(b *host.Builder, name string, opts ...cassandra.BindOption) error {
	c, err := services(b)
	if err != nil {
		return err
	}
	return cassandra.AddClientFromConfig(c, name, opts...)
}

// AddClientFromConfigAsDefault is AddClientFromConfig for the default name.
func AddClientFromConfigAsDefault(b *host.Builder, opts ...cassandra.BindOption) error {
	return AddClientFromConfig(b, cassandra.DefaultOptionsName, opts...)
}

// AddClientsFromSection registers one client per child of the prefix section
// once configuration is loaded.
func AddClientsFromSection(b *host.Builder, prefix string) error {
	if err := argument.First(
		argument.NotNil("builder", b),
		argument.NotEmpty("prefix", prefix),
	); err != nil {
		return err
	}
	if _, err := services(b); err != nil {
		return err
	}
	b.ConfigureServices(func(ctx host.Context, c *container.Collection) error {
		for _, name := range ctx.Configuration.Section(prefix).Keys() {
			if err := cassandra.AddClientFromConfig(c, name, cassandra.WithSectionPrefix(prefix)); err != nil {
				return err
			}
			ctx.Logger.Debug().Str("client", name).Str("prefix", prefix).Msg("client registered from configuration")
		}
		return nil
	})
	return nil
}

// GetClient resolves the client name.
func GetClient(h *host.Host, name string) (*cassandra.Client, bool, error) {
	p, err := provider(h)
	if err != nil {
		return nil, false, err
	}
	return cassandra.GetClient(p, name)
}

// GetDefaultClient resolves the default client.
func GetDefaultClient(h *host.Host) (*cassandra.Client, bool, error) {
	return GetClient(h, cassandra.DefaultOptionsName)
}

// GetRequiredClient resolves the client name or fails with container.ErrNotFound.
func GetRequiredClient(h *host.Host, name string) (*cassandra.Client, error) {
	p, err := provider(h)
	if err != nil {
		return nil, err
	}
	return cassandra.GetRequiredClient(p, name)
}

// GetRequiredDefaultClient resolves the default client or fails with container.ErrNotFound.
func GetRequiredDefaultClient(h *host.Host) (*cassandra.Client, error) {
	return GetRequiredClient(h, cassandra.DefaultOptionsName)
}

// ClientNames lists the registered client names.
func ClientNames(h *host.Host) []string {
	if h == nil {
		return nil
	}
	return cassandra.ClientNames(h.Services)
}
