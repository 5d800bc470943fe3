package engineconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is the server configuration tree backing every `@{a.b.c}` reference
// (spec §6.2) and the frozen `env` execution-context namespace (spec §4.10).
// It is loaded once by the embedding application and frozen at compile time.
type Tree struct {
	root map[string]any
}

// NewTree wraps an already-decoded configuration map.
func NewTree(root map[string]any) *Tree {
	if root == nil {
		root = map[string]any{}
	}
	return &Tree{root: root}
}

// LoadTreeFromFile reads and parses a YAML server-configuration file.
func LoadTreeFromFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server config: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return NewTree(normalizeYAMLMap(raw)), nil
}

// normalizeYAMLMap recursively converts map[string]interface{} (the shape
// yaml.v3 actually produces for nested mappings) into a uniform tree; yaml.v3
// already gives string-keyed maps for top-level documents, but nested
// mappings under `interface{}` values still decode as map[string]interface{}
// so this is mostly a defensive no-op pass that also copies slices.
func normalizeYAMLMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeYAMLMap(t)
	case []any:
		result := make([]any, len(t))
		for i, item := range t {
			result[i] = normalizeYAMLValue(item)
		}
		return result
	default:
		return v
	}
}

// Lookup resolves a dot-separated path such as "fraud.api_key" against the
// tree. It returns (nil, false) if any segment is missing or not a map.
func (t *Tree) Lookup(path string) (any, bool) {
	if t == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur any = t.root
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

// LookupString is a convenience wrapper returning the value rendered as a
// string, used by the Datasource Gateway to read `datasources.<id>.*`
// connection info.
func (t *Tree) LookupString(path string) (string, bool) {
	v, ok := t.Lookup(path)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

// Flatten returns the tree as a nested map, suitable for seeding the `env`
// execution-context namespace.
func (t *Tree) Flatten() map[string]any {
	if t == nil {
		return map[string]any{}
	}
	return t.root
}
