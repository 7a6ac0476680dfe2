// Package cqlweb registers and resolves named Cassandra clients on a web app.
package cqlweb

import (
	"net/http"

	"github.com/timzifer/cqlreg/cassandra"
	"github.com/timzifer/cqlreg/cassandra/cqlhost"
	"github.com/timzifer/cqlreg/host"
	"github.com/timzifer/cqlreg/internal/argument"
	"github.com/timzifer/cqlreg/options"
	"github.com/timzifer/cqlreg/webapp"
)

func hostBuilder(b *webapp.Builder) (*host.Builder, error) {
	if err := argument.NotNil("builder", b); err != nil {
		return nil, err
	}
	return b.Host(), nil
}

func appHost(app *webapp.App) (*host.Host, error) {
	if err := argument.NotNil("app", app); err != nil {
		return nil, err
	}
	return app.Host, nil
}

// AddClientOptions registers configure for the options stored under name.
func AddClientOptions(b *webapp.Builder, name string, configure func(*cassandra.ClientOptions)) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.AddClientOptions(hb, name, configure)
}

// AddClientOptionsAsDefault registers configure for the default options.
func AddClientOptionsAsDefault(b *webapp.Builder, configure func(*cassandra.ClientOptions)) error {
	return AddClientOptions(b, cassandra.DefaultOptionsName, configure)
}

// ConfigureClientOptions hands the options builder of name to configure.
func ConfigureClientOptions(b *webapp.Builder, name string, configure func(*options.Builder[cassandra.ClientOptions])) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.ConfigureClientOptions(hb, name, configure)
}

// ConfigureClientOptionsAsDefault hands the default options builder to configure.
func ConfigureClientOptionsAsDefault(b *webapp.Builder, configure func(*options.Builder[cassandra.ClientOptions])) error {
	return ConfigureClientOptions(b, cassandra.DefaultOptionsName, configure)
}

// BindClientOptions binds the options of name from the app configuration.
func BindClientOptions(b *webapp.Builder, name string, opts ...cassandra.BindOption) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.BindClientOptions(hb, name, opts...)
}

// BindClientOptionsAsDefault binds the default options from the app configuration.
func BindClientOptionsAsDefault(b *webapp.Builder, opts ...cassandra.BindOption) error {
	return BindClientOptions(b, cassandra.DefaultOptionsName, opts...)
}

// AddClientFromOptions registers the client name built from the options under optionsName.
func AddClientFromOptions(b *webapp.Builder, name, optionsName string) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.AddClientFromOptions(hb, name, optionsName)
}

// AddClientFromOptionsAsDefault registers the default client from the options under optionsName.
func AddClientFromOptionsAsDefault(b *webapp.Builder, optionsName string) error {
	return AddClientFromOptions(b, cassandra.DefaultOptionsName, optionsName)
}

// AddClient registers options and client under name.
func AddClient(b *webapp.Builder, name string, configure func(*cassandra.ClientOptions)) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.AddClient(hb, name, configure)
}

// AddClientAsDefault registers the default options and client.
func AddClientAsDefault(b *webapp.Builder, configure func(*cassandra.ClientOptions)) error {
	return AddClient(b, cassandra.DefaultOptionsName, configure)
}

// ConfigureClient registers options through a builder and the client under name.
func ConfigureClient(b *webapp.Builder, name string, configure func(*options.Builder[cassandra.ClientOptions])) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.ConfigureClient(hb, name, configure)
}

// ConfigureClientAsDefault is ConfigureClient for the default name.
func ConfigureClientAsDefault(b *webapp.Builder, configure func(*options.Builder[cassandra.ClientOptions])) error {
	return ConfigureClient(b, cassandra.DefaultOptionsName, configure)
}

// AddClientFromConfig binds the options of name and registers the client.
func AddClientFromConfig(b *webapp.Builder, name string, opts ...cassandra.BindOption) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.AddClientFromConfig(hb, name, opts...)
}

// AddClientFromConfigAsDefault is AddClientFromConfig for the default name.
func AddClientFromConfigAsDefault(b *webapp.Builder, opts ...cassandra.BindOption) error {
	return AddClientFromConfig(b, cassandra.DefaultOptionsName, opts...)
}

// AddClientsFromSection registers one client per child of the prefix section.
func AddClientsFromSection(b *webapp.Builder, prefix string) error {
	hb, err := hostBuilder(b)
	if err != nil {
		return err
	}
	return cqlhost.AddClientsFromSection(hb, prefix)
}

// GetClient resolves the client name.
func GetClient(app *webapp.App, name string) (*cassandra.Client, bool, error) {
	h, err := appHost(app)
	if err != nil {
		return nil, false, err
	}
	return cqlhost.GetClient(h, name)
}

// GetDefaultClient resolves the default client.
func GetDefaultClient(app *webapp.App) (*cassandra.Client, bool, error) {
	return GetClient(app, cassandra.DefaultOptionsName)
}

// GetRequiredClient resolves the client name or fails with container.ErrNotFound.
func GetRequiredClient(app *webapp.App, name string) (*cassandra.Client, error) {
	h, err := appHost(app)
	if err != nil {
		return nil, err
	}
	return cqlhost.GetRequiredClient(h, name)
}

// GetRequiredDefaultClient resolves the default client or fails with container.ErrNotFound.
func GetRequiredDefaultClient(app *webapp.App) (*cassandra.Client, error) {
	return GetRequiredClient(app, cassandra.DefaultOptionsName)
}

// ClientInfo describes one registered client.
type ClientInfo struct {
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints,omitempty"`
	Port      int      `json:"port,omitempty"`
	Keyspace  string   `json:"keyspace,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// MapClients serves the registered clients as JSON under pattern. Listing a
// client builds it; no connection is opened.
func MapClients(b *webapp.Builder, pattern string) error {
	if err := argument.First(
		argument.NotNil("builder", b),
		argument.NotEmpty("pattern", pattern),
	); err != nil {
		return err
	}
	b.Handle(pattern, func(app *webapp.App) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			names := cqlhost.ClientNames(app.Host)
			infos := make([]ClientInfo, 0, len(names))
			for _, name := range names {
				info := ClientInfo{Name: name}
				client, err := cqlhost.GetRequiredClient(app.Host, name)
				if err != nil {
					info.Error = err.Error()
				} else {
					info.Endpoints = client.Endpoints()
					info.Port = client.Port()
					info.Keyspace = client.Keyspace()
				}
				infos = append(infos, info)
			}
			webapp.WriteJSON(w, http.StatusOK, infos)
		})
	})
	return nil
}
