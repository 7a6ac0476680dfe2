package cassandra

import (
	"sort"
	"sync"

	"github.com/timzifer/cqlreg/config"
	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/internal/argument"
	"github.com/timzifer/cqlreg/options"
)

// BindOption customizes configuration binding.
type BindOption func(*bindSettings)

type bindSettings struct {
	prefix string
}

// WithSectionPrefix binds from <prefix>:<name> instead of Client:<name>.
func WithSectionPrefix(prefix string) BindOption {
	return func(s *bindSettings) { s.prefix = prefix }
}

func bindPath(name string, opts []BindOption) (string, error) {
	s := bindSettings{prefix: ClientSectionKey}
	for _, opt := range opts {
		if err := argument.NotNil("bind option", opt); err != nil {
			return "", err
		}
		opt(&s)
	}
	if err := argument.NotEmpty("section prefix", s.prefix); err != nil {
		return "", err
	}
	return SectionPath(s.prefix, name), nil
}

// clientNames tracks the client names registered in a collection.
type clientNames struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func (n *clientNames) add(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names[name] = struct{}{}
}

func (n *clientNames) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.names))
	for name := range n.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func optionsRegistry(c *container.Collection) *options.Registry[ClientOptions] {
	reg := container.Ensure(c, options.NewRegistry[ClientOptions])
	if !container.Contains[*options.Store[ClientOptions]](c, "") {
		_ = container.AddSingleton(c, func(p *container.Provider) (*options.Store[ClientOptions], error) {
			conf, _, err := container.Get[*config.Configuration](p)
			if err != nil {
				return nil, err
			}
			return reg.Store(conf), nil
		})
	}
	return reg
}

// AddClientOptions registers configure for the options stored under name.
func AddClientOptions(c *container.Collection, name string, configure func(*ClientOptions)) error {
	if err := argument.First(
		argument.NotNil("services", c),
		argument.NotEmpty("name", name),
		argument.NotNil("configure", configure),
	); err != nil {
		return err
	}
	return optionsRegistry(c).Configure(name, configure)
}

// AddClientOptionsAsDefault registers configure for the default options.
func AddClientOptionsAsDefault(c *container.Collection, configure func(*ClientOptions)) error {
	return AddClientOptions(c, DefaultOptionsName, configure)
}

// ConfigureClientOptions hands the options builder of name to configure.
func ConfigureClientOptions(c *container.Collection, name string, configure func(*options.Builder[ClientOptions])) error {
	if err := argument.First(
		argument.NotNil("services", c),
		argument.NotEmpty("name", name),
		argument.NotNil("configure", configure),
	); err != nil {
		return err
	}
	b := optionsRegistry(c).Builder(name)
	configure(b)
	return b.Err()
}

// ConfigureClientOptionsAsDefault hands the default options builder to configure.
func ConfigureClientOptionsAsDefault(c *container.Collection, configure func(*options.Builder[ClientOptions])) error {
	return ConfigureClientOptions(c, DefaultOptionsName, configure)
}

// BindClientOptions binds the options of name from the section <prefix>:<name>.
func BindClientOptions(c *container.Collection, name string, opts ...BindOption) error {
	if err := argument.First(
		argument.NotNil("services", c),
		argument.NotEmpty("name", name),
	); err != nil {
		return err
	}
	path, err := bindPath(name, opts)
	if err != nil {
		return err
	}
	return optionsRegistry(c).Bind(name, path)
}

// BindClientOptionsAsDefault binds the default options from <prefix>:Default.
func BindClientOptionsAsDefault(c *container.Collection, opts ...BindOption) error {
	return BindClientOptions(c, DefaultOptionsName, opts...)
}

// AddClientFromOptions registers the client name, built from the options
// stored under optionsName when first resolved.
func AddClientFromOptions(c *container.Collection, name, optionsName string) error {
	if err := argument.First(
		argument.NotNil("services", c),
		argument.NotEmpty("name", name),
		argument.NotEmpty("optionsName", optionsName),
	); err != nil {
		return err
	}
	optionsRegistry(c)
	container.Ensure(c, func() *clientNames {
		return &clientNames{names: make(map[string]struct{})}
	}).add(name)
	return container.AddNamedSingleton(c, name, clientFactory(name, optionsName))
}

// AddClientFromOptionsAsDefault registers the default client from the options under optionsName.
func AddClientFromOptionsAsDefault(c *container.Collection, optionsName string) error {
	return AddClientFromOptions(c, DefaultOptionsName, optionsName)
}

// AddClient registers options and client under name.
func AddClient(c *container.Collection, name string, configure func(*ClientOptions)) error {
	if err := AddClientOptions(c, name, configure); err != nil {
		return err
	}
	return AddClientFromOptions(c, name, name)
}

// AddClientAsDefault registers the default options and client.
func AddClientAsDefault(c *container.Collection, configure func(*ClientOptions)) error {
	return AddClient(c, DefaultOptionsName, configure)
}

// ConfigureClient registers options through a builder and the client under name.
func ConfigureClient(c *container.Collection, name string, configure func(*options.Builder[ClientOptions])) error {
	if err := ConfigureClientOptions(c, name, configure); err != nil {
		return err
	}
	return AddClientFromOptions(c, name, name)
}

// ConfigureClientAsDefault is ConfigureClient for the default name.
func ConfigureClientAsDefault(c *container.Collection, configure func(*options.Builder[ClientOptions])) error {
	return ConfigureClient(c, DefaultOptionsName, configure)
}

// AddClientFromConfig binds the options of name from configuration and registers the client.
func AddClientFromConfig(c *container.Collection, name string, opts ...BindOption) error {
	if err := BindClientOptions(c, name, opts...); err != nil {
		return err
	}
	return AddClientFromOptions(c, name, name)
}

// AddClientFromConfigAsDefault is AddClientFromConfig for the default name.
func AddClientFromConfigAsDefault(c *container.Collection, opts ...BindOption) error {
	return AddClientFromConfig(c, DefaultOptionsName, opts...)
}

// GetClient resolves the client name. The boolean is false when no client was registered.
func GetClient(p *container.Provider, name string) (*Client, bool, error) {
	if err := argument.First(
		argument.NotNil("provider", p),
		argument.NotEmpty("name", name),
	); err != nil {
		return nil, false, err
	}
	return container.GetNamed[*Client](p, name)
}

// GetDefaultClient resolves the default client.
func GetDefaultClient(p *container.Provider) (*Client, bool, error) {
	return GetClient(p, DefaultOptionsName)
}

// GetRequiredClient resolves the client name and fails with container.ErrNotFound when absent.
func GetRequiredClient(p *container.Provider, name string) (*Client, error) {
	if err := argument.First(
		argument.NotNil("provider", p),
		argument.NotEmpty("name", name),
	); err != nil {
		return nil, err
	}
	return container.GetRequiredNamed[*Client](p, name)
}

// GetRequiredDefaultClient resolves the default client.
func GetRequiredDefaultClient(p *container.Provider) (*Client, error) {
	return GetRequiredClient(p, DefaultOptionsName)
}

// ClientNames lists the client names registered before the provider was built.
func ClientNames(p *container.Provider) []string {
	names, ok, err := container.Get[*clientNames](p)
	if err != nil || !ok {
		return nil
	}
	return names.list()
}
