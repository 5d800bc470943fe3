package engineconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupResolvesNestedPath(t *testing.T) {
	tree := NewTree(map[string]any{
		"datasources": map[string]any{
			"ds1": map[string]any{"kind": "sql", "dsn": "postgres://localhost/db"},
		},
	})

	v, ok := tree.Lookup("datasources.ds1.kind")
	if !ok || v != "sql" {
		t.Fatalf("Lookup() = (%v, %v), want (sql, true)", v, ok)
	}
}

func TestLookupMissingSegmentReturnsFalse(t *testing.T) {
	tree := NewTree(map[string]any{"a": map[string]any{"b": "c"}})

	if _, ok := tree.Lookup("a.missing"); ok {
		t.Fatalf("Lookup() for a missing segment = true, want false")
	}
	if _, ok := tree.Lookup("a.b.c"); ok {
		t.Fatalf("Lookup() descending past a leaf value = true, want false")
	}
}

func TestLookupStringRendersNonStringValues(t *testing.T) {
	tree := NewTree(map[string]any{"limit": 42})
	s, ok := tree.LookupString("limit")
	if !ok || s != "42" {
		t.Fatalf("LookupString() = (%q, %v), want (42, true)", s, ok)
	}
}

func TestNilTreeLookupIsSafe(t *testing.T) {
	var tree *Tree
	if _, ok := tree.Lookup("a.b"); ok {
		t.Fatalf("Lookup() on a nil tree = true, want false")
	}
	if got := tree.Flatten(); len(got) != 0 {
		t.Fatalf("Flatten() on a nil tree = %v, want empty", got)
	}
}

func TestLoadTreeFromFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := "fraud:\n  api_key: secret-123\ndatasources:\n  ds1:\n    kind: redis\n    addr: localhost:6379\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	tree, err := LoadTreeFromFile(path)
	if err != nil {
		t.Fatalf("LoadTreeFromFile() error: %v", err)
	}
	if v, ok := tree.LookupString("fraud.api_key"); !ok || v != "secret-123" {
		t.Fatalf("LookupString(fraud.api_key) = (%q, %v)", v, ok)
	}
	if v, ok := tree.LookupString("datasources.ds1.addr"); !ok || v != "localhost:6379" {
		t.Fatalf("LookupString(datasources.ds1.addr) = (%q, %v)", v, ok)
	}
}

func TestLoadTreeFromFileMissingFileReturnsError(t *testing.T) {
	if _, err := LoadTreeFromFile("/nonexistent/server.yaml"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestFlattenReturnsTheUnderlyingMap(t *testing.T) {
	root := map[string]any{"a": "b"}
	tree := NewTree(root)
	got := tree.Flatten()
	if got["a"] != "b" {
		t.Fatalf("Flatten() = %v, want %v", got, root)
	}
}
