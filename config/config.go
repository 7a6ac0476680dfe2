package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyDelimiter separates section names in a path such as "Client:Default".
const KeyDelimiter = ":"

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
}

// HostConfig holds the settings the host reads for itself.
type HostConfig struct {
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
}

// Source produces one configuration layer as a YAML mapping node.
type Source interface {
	// Describe returns a human readable name used in error messages.
	Describe() string
	// Load returns the mapping node of the layer. A nil node contributes nothing.
	Load() (*yaml.Node, error)
}

// FileSource is implemented by sources backed by a file on disk.
type FileSource interface {
	File() string
}

// Configuration is the merged view over all sources. It is immutable once built.
type Configuration struct {
	root  *yaml.Node
	files []string
}

// Empty returns a configuration without any keys.
func Empty() *Configuration {
	return &Configuration{root: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// Load reads a single configuration file. Files ending in .cue are evaluated
// with CUE; everything else is decoded as YAML.
func Load(path string) (*Configuration, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	b := NewBuilder()
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		b.AddCUEFile(path, "")
	} else {
		b.AddYAMLFile(path)
	}
	return b.Build()
}

// Section returns the section at path. Missing sections are returned as
// non-existent sections, never nil.
func (c *Configuration) Section(path string) *Section {
	if c == nil {
		return &Section{path: path, key: lastKey(path)}
	}
	return (&Section{node: c.root}).Section(path)
}

// Bind decodes the section at path into out. A missing section leaves out untouched.
func (c *Configuration) Bind(path string, out any) error {
	return c.Section(path).Decode(out)
}

// Files lists the files that contributed to the configuration.
func (c *Configuration) Files() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.files...)
}

// Builder collects sources. Later sources override keys of earlier ones.
type Builder struct {
	sources []Source
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a custom source.
func (b *Builder) Add(src Source) *Builder {
	if src != nil {
		b.sources = append(b.sources, src)
	}
	return b
}

// AddYAMLFile appends a YAML file source.
func (b *Builder) AddYAMLFile(path string) *Builder {
	return b.Add(yamlFileSource{path: path})
}

// AddYAML appends an in-memory YAML document.
func (b *Builder) AddYAML(name string, raw []byte) *Builder {
	return b.Add(yamlBytesSource{name: name, raw: raw})
}

// Sources returns the registered sources in order.
func (b *Builder) Sources() []Source {
	return append([]Source(nil), b.sources...)
}

// Build loads and merges every source.
func (b *Builder) Build() (*Configuration, error) {
	cfg := Empty()
	files := make(map[string]struct{})
	for _, src := range b.sources {
		node, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src.Describe(), err)
		}
		if node != nil {
			if node.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("load %s: top-level document must be a mapping", src.Describe())
			}
			cfg.root = mergeNodes(cfg.root, node)
		}
		if fs, ok := src.(FileSource); ok && fs.File() != "" {
			abs, err := filepath.Abs(fs.File())
			if err != nil {
				abs = fs.File()
			}
			files[abs] = struct{}{}
		}
	}
	cfg.files = make([]string, 0, len(files))
	for path := range files {
		cfg.files = append(cfg.files, path)
	}
	sort.Strings(cfg.files)
	return cfg, nil
}

type yamlFileSource struct {
	path string
}

func (s yamlFileSource) Describe() string { return s.path }
func (s yamlFileSource) File() string     { return s.path }

func (s yamlFileSource) Load() (*yaml.Node, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decodeDocument(raw)
}

type yamlBytesSource struct {
	name string
	raw  []byte
}

func (s yamlBytesSource) Describe() string {
	if s.name == "" {
		return "inline yaml"
	}
	return s.name
}

func (s yamlBytesSource) Load() (*yaml.Node, error) {
	return decodeDocument(s.raw)
}

func decodeDocument(raw []byte) (*yaml.Node, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, nil
	}
	return document.Content[0], nil
}

// mergeNodes overlays src onto dst. Mappings merge key by key (keys compare
// case-insensitively); any other node kind replaces the destination.
func mergeNodes(dst, src *yaml.Node) *yaml.Node {
	if src == nil {
		return dst
	}
	if dst == nil || dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		return cloneNode(src)
	}
	out := cloneNode(dst)
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		if idx := findKey(out, key.Value); idx >= 0 {
			out.Content[idx+1] = mergeNodes(out.Content[idx+1], value)
			continue
		}
		out.Content = append(out.Content, cloneNode(key), cloneNode(value))
	}
	return out
}

func findKey(mapping *yaml.Node, key string) int {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if strings.EqualFold(mapping.Content[i].Value, key) {
			return i
		}
	}
	return -1
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	clone := *n
	if len(n.Content) > 0 {
		clone.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			clone.Content[i] = cloneNode(child)
		}
	}
	if n.Alias != nil {
		clone.Alias = cloneNode(n.Alias)
	}
	return &clone
}
