package config

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvSeparator separates nested keys in environment variable names, e.g.
// CQL_CLIENT__DEFAULT__KEYSPACE.
const EnvSeparator = "__"

// AddEnv appends the environment variables that start with prefix. Keys are
// lower-cased; numeric keys turn their parent into a sequence.
func (b *Builder) AddEnv(prefix string) *Builder {
	return b.Add(envSource{prefix: prefix, environ: os.Environ})
}

type envSource struct {
	prefix  string
	environ func() []string
}

func (s envSource) Describe() string { return "environment " + s.prefix + "*" }

func (s envSource) Load() (*yaml.Node, error) {
	tree := map[string]any{}
	found := false
	for _, kv := range s.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, s.prefix) {
			continue
		}
		rest := strings.TrimPrefix(name[len(s.prefix):], "_")
		if rest == "" {
			continue
		}
		segments := strings.Split(strings.ToLower(rest), EnvSeparator)
		insertEnv(tree, segments, value)
		found = true
	}
	if !found {
		return nil, nil
	}
	return envNode(tree), nil
}

func insertEnv(tree map[string]any, segments []string, value string) {
	for i, seg := range segments {
		if i == len(segments)-1 {
			tree[seg] = value
			return
		}
		next, ok := tree[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			tree[seg] = next
		}
		tree = next
	}
}

func envNode(v any) *yaml.Node {
	m, ok := v.(map[string]any)
	if !ok {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: v.(string)}
	}
	keys := make([]string, 0, len(m))
	numeric := len(m) > 0
	for k := range m {
		keys = append(keys, k)
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
		}
	}
	if numeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, k := range keys {
			seq.Content = append(seq.Content, envNode(m[k]))
		}
		return seq
	}
	sort.Strings(keys)
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			envNode(m[k]))
	}
	return mapping
}
