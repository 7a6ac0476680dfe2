package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Section is a view on one node of the configuration tree.
type Section struct {
	path string
	key  string
	node *yaml.Node
}

// Path returns the full ":"-separated path of the section.
func (s *Section) Path() string { return s.path }

// Key returns the last segment of the path.
func (s *Section) Key() string { return s.key }

// Exists reports whether the section is present in the configuration.
func (s *Section) Exists() bool { return s != nil && s.node != nil }

// Value returns the scalar value of the section or "" for mappings and sequences.
func (s *Section) Value() string {
	if !s.Exists() || s.node.Kind != yaml.ScalarNode {
		return ""
	}
	return s.node.Value
}

// Section returns the sub-section at the relative path.
func (s *Section) Section(path string) *Section {
	current := s.node
	full := s.path
	for _, segment := range strings.Split(path, KeyDelimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if full == "" {
			full = segment
		} else {
			full = full + KeyDelimiter + segment
		}
		current = child(current, segment)
	}
	return &Section{path: full, key: lastKey(full), node: current}
}

// Children returns the direct sub-sections of a mapping in document order.
func (s *Section) Children() []*Section {
	if !s.Exists() || s.node.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]*Section, 0, len(s.node.Content)/2)
	for i := 0; i+1 < len(s.node.Content); i += 2 {
		key := s.node.Content[i].Value
		path := key
		if s.path != "" {
			path = s.path + KeyDelimiter + key
		}
		out = append(out, &Section{path: path, key: key, node: s.node.Content[i+1]})
	}
	return out
}

// Keys returns the keys of the direct sub-sections.
func (s *Section) Keys() []string {
	children := s.Children()
	keys := make([]string, 0, len(children))
	for _, c := range children {
		keys = append(keys, c.key)
	}
	return keys
}

// Decode populates out from the section. Keys absent from the section leave the
// corresponding fields of out untouched; a missing section is a no-op.
func (s *Section) Decode(out any) error {
	if !s.Exists() {
		return nil
	}
	if err := s.node.Decode(out); err != nil {
		return fmt.Errorf("bind section %s: %w", s.path, err)
	}
	return nil
}

// Node exposes the raw node for callers that decode polymorphic values.
func (s *Section) Node() *yaml.Node {
	if !s.Exists() {
		return nil
	}
	return s.node
}

func child(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	idx := findKey(node, key)
	if idx < 0 {
		return nil
	}
	return node.Content[idx+1]
}

func lastKey(path string) string {
	if idx := strings.LastIndex(path, KeyDelimiter); idx >= 0 {
		return path[idx+len(KeyDelimiter):]
	}
	return path
}
