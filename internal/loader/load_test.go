package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corintai/corint/internal/corinterr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoadMergesArtifactsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules/high_amount.yaml", `
rule:
  id: high_amount
  score: 10
  when:
    ">": [event.amount, 1000]
`)
	writeFile(t, dir, "rulesets/fraud.yaml", `
ruleset:
  id: fraud_check
  rules: [high_amount]
`)

	repo, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := repo.Rules["high_amount"]; !ok {
		t.Fatalf("expected rule high_amount to be loaded")
	}
	if _, ok := repo.Rulesets["fraud_check"]; !ok {
		t.Fatalf("expected ruleset fraud_check to be loaded")
	}
}

func TestLoadDetectsDuplicateRuleID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "rule:\n  id: dup\n  score: 1\n")
	writeFile(t, dir, "b.yaml", "rule:\n  id: dup\n  score: 2\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected a duplicate ID error")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindDuplicateID {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindDuplicateID)
	}
}

func TestLoadDetectsRuleRulesetNamespaceConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "rule:\n  id: shared_id\n  score: 1\n")
	writeFile(t, dir, "b.yaml", "ruleset:\n  id: shared_id\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected a namespace conflict error")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindIDNamespaceConfl {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindIDNamespaceConfl)
	}
}

func TestLoadDetectsDuplicateRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "registry:\n  entries: []\n")
	writeFile(t, dir, "b.yaml", "registry:\n  entries: []\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected an error for more than one registry artifact")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "rule:\n  id: [not, a, string\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindInvalidYAML {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindInvalidYAML)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "rule:\n  id: r1\n  score: 1\n  not_a_real_field: true\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected an error for an unrecognized field under strict YAML decoding")
	}
}

func TestLoadFollowsImportAndDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "entry.yaml", `
import:
  rules: [cyclic.yaml]
rule:
  id: entry_rule
  score: 1
`)
	writeFile(t, dir, "cyclic.yaml", `
import:
  rules: [entry.yaml]
rule:
  id: cyclic_rule
  score: 1
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected a circular import error")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindCircularImport {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindCircularImport)
	}
}

func TestLoadRejectsRelativeImportPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "entry.yaml", `
import:
  rules: ["./other.yaml"]
`)
	writeFile(t, dir, "other.yaml", "rule:\n  id: other_rule\n  score: 1\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected an error for a './'-prefixed import path")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindImportNotFound {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindImportNotFound)
	}
}

func TestLoadImportedFileIsOnlyParsedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "import:\n  rules: [shared.yaml]\nrule:\n  id: a_rule\n  score: 1\n")
	writeFile(t, dir, "b.yaml", "import:\n  rules: [shared.yaml]\nrule:\n  id: b_rule\n  score: 1\n")
	writeFile(t, dir, "shared.yaml", "rule:\n  id: shared_rule\n  score: 1\n")

	repo, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := repo.Rules["shared_rule"]; !ok {
		t.Fatalf("expected shared_rule to be merged exactly once without a duplicate-ID error")
	}
}

func TestLoadIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "rule:\n  id: r1\n  score: 1\n")
	writeFile(t, dir, "README.md", "not an artifact\n")

	repo, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(repo.Rules) != 1 {
		t.Fatalf("Rules = %v, want exactly 1", repo.Rules)
	}
}
