package semantic_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/loader"
	"github.com/corintai/corint/internal/semantic"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
}

func loadAndAnalyze(t *testing.T, dir string) (*loader.UnresolvedRepo, error) {
	t.Helper()
	repo, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	_, analyzeErr := semantic.Analyze(repo, nil)
	return repo, analyzeErr
}

func wantKind(t *testing.T, err error, want corinterr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error of kind %v, got nil", want)
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != want {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true); err = %v", kind, ok, want, err)
	}
}

// fullRepoDir writes a complete, internally consistent repository exercising
// every artifact kind: a static list, an aggregation and an expression
// feature, a rule, a ruleset, an api, a service, a two-step pipeline, and a
// registry routing to it.
func fullRepoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "lists/denylist.yaml", `
lists:
  - id: denylist
    backend: static
    entries: ["acct-1", "acct-2"]
`)
	writeFile(t, dir, "features/velocity.yaml", `
features:
  - id: txn_count_1h
    kind: aggregation
    method: count
    datasource: ds-sql
    entity: event.account_id
    field: "*"
    window: 1h
  - id: txn_count_doubled
    kind: expression
    expression: "txn_count_1h * 2"
`)
	writeFile(t, dir, "rules/high_velocity.yaml", `
rule:
  id: high_velocity
  score: 10
  when: "features.txn_count_doubled > 10"
`)
	writeFile(t, dir, "rulesets/base.yaml", `
ruleset:
  id: base_fraud
  rules: [high_velocity]
  conclusion:
    - when: "total_score >= 10"
      signal: review
    - default: true
      signal: pass
`)
	writeFile(t, dir, "apis/risk.yaml", `
apis:
  - id: risk-api
    base_url: "https://risk.internal"
    timeout: 2s
    endpoints:
      score:
        path: /score
        method: GET
`)
	writeFile(t, dir, "services/ledger.yaml", `
services:
  - id: ledger
    kind: http_service
    address: "https://ledger.internal"
    endpoints:
      record:
        path: /record
        method: POST
`)
	writeFile(t, dir, "pipelines/main.yaml", `
pipeline:
  id: main
  entry: check
  steps:
    check:
      type: ruleset
      ruleset: base_fraud
      next: notify
    notify:
      type: api
      api: risk-api
      endpoint: score
      output: result
  decision:
    - default: true
      result: approve
`)
	writeFile(t, dir, "registry.yaml", `
registry:
  entries:
    - pipeline: main
`)
	return dir
}

func TestAnalyzeCompilesAFullRepository(t *testing.T) {
	dir := fullRepoDir(t)
	_, err := loadAndAnalyze(t, dir)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
}

func TestAnalyzeDetectsFeatureDependencyCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/ab.yaml", `
features:
  - id: a
    kind: expression
    expression: "b + 1"
  - id: b
    kind: expression
    expression: "a + 1"
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindFeatureCycle)
}

func TestAnalyzeDetectsUnknownFeatureReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules/r1.yaml", `
rule:
  id: r1
  score: 1
  when: "features.missing > 1"
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

func TestAnalyzeDetectsUnknownRulesetRuleReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rulesets/rs.yaml", `
ruleset:
  id: rs
  rules: [nope]
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

func TestAnalyzeDetectsExtendsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rulesets/a.yaml", "ruleset:\n  id: a\n  extends: b\n")
	writeFile(t, dir, "rulesets/b.yaml", "ruleset:\n  id: b\n  extends: a\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindCircularExtends)
}

func TestAnalyzeDetectsExtendsTargetNotFound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rulesets/a.yaml", "ruleset:\n  id: a\n  extends: missing\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindExtendsNotFound)
}

func TestAnalyzeRejectsListMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists/l.yaml", "lists:\n  - id: l\n    backend: redis_set\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsAggregationFeatureMissingFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/f.yaml", "features:\n  - id: f\n    kind: aggregation\n    method: count\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsInvalidAggregationWindow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/f.yaml", `
features:
  - id: f
    kind: aggregation
    method: count
    datasource: ds
    entity: event.account_id
    field: "*"
    window: "not-a-window"
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindInvalidExpression)
}

func TestAnalyzeRejectsPercentileMethodWithoutPercentile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/f.yaml", `
features:
  - id: f
    kind: aggregation
    method: percentile
    datasource: ds
    entity: event.account_id
    field: amount
    window: 1h
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsAPIMissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "apis/a.yaml", "apis:\n  - id: a\n    endpoints: {}\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsServiceWithUnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "services/s.yaml", "services:\n  - id: s\n    kind: carrier_pigeon\n    address: x\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindDialectViolation)
}

func TestAnalyzeRejectsMessageQueueServiceWithoutBroker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "services/s.yaml", "services:\n  - id: s\n    kind: message_queue\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsPipelineWithoutDecision(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: s1
  steps:
    s1:
      type: router
      routes:
        - when: "event.amount > 0"
          next: ""
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsPipelineWithUnknownEntryStep(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: missing
  steps: {}
  decision:
    - default: true
      result: approve
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

func TestAnalyzeDetectsPipelineStepCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: s1
  steps:
    s1:
      type: router
      routes:
        - when: "event.amount > 0"
          next: s2
      default: s2
    s2:
      type: router
      routes:
        - when: "event.amount > 0"
          next: s1
      default: s1
  decision:
    - default: true
      result: approve
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindPipelineCycle)
}

func TestAnalyzeRejectsRulesetStepMissingRuleset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: s1
  steps:
    s1:
      type: ruleset
  decision:
    - default: true
      result: approve
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindMissingField)
}

func TestAnalyzeRejectsStepReferencingUnknownRuleset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: s1
  steps:
    s1:
      type: ruleset
      ruleset: nope
  decision:
    - default: true
      result: approve
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

func TestAnalyzeRejectsSubPipelineReferencingUnknownPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipelines/p.yaml", `
pipeline:
  id: p
  entry: s1
  steps:
    s1:
      type: pipeline
      pipeline: nope
  decision:
    - default: true
      result: approve
`)
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

func TestAnalyzeRejectsRegistryReferencingUnknownPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "registry.yaml", "registry:\n  entries:\n    - pipeline: nope\n")
	_, err := loadAndAnalyze(t, dir)
	wantKind(t, err, corinterr.KindUnknownRef)
}

// TestAnalyzeDefaultsAPIStepOutputToAPIAndEndpoint covers spec §4.6: a step
// with a response_map but no explicit `output:` must still merge its mapped
// response into api.<api_id>.<endpoint_id> instead of being discarded.
func TestAnalyzeDefaultsAPIStepOutputToAPIAndEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "apis/risk.yaml", `
apis:
  - id: risk-api
    base_url: "https://risk.internal"
    endpoints:
      score:
        path: /score
        method: GET
`)
	writeFile(t, dir, "pipelines/main.yaml", `
pipeline:
  id: main
  entry: notify
  steps:
    notify:
      type: api
      api: risk-api
      endpoint: score
  decision:
    - default: true
      result: approve
`)
	writeFile(t, dir, "registry.yaml", "registry:\n  entries:\n    - pipeline: main\n")

	repo, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	compiled, err := semantic.Analyze(repo, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	step := compiled.Pipelines["main"].Steps["notify"]
	if step.Output != "risk-api.score" {
		t.Fatalf("step.Output = %q, want %q (defaulted to api.endpoint)", step.Output, "risk-api.score")
	}
}

// TestAnalyzePreservesExplicitAPIStepOutput ensures a declared `output:` is
// never overridden by the default.
func TestAnalyzePreservesExplicitAPIStepOutput(t *testing.T) {
	dir := fullRepoDir(t)
	repo, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	compiled, err := semantic.Analyze(repo, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got := compiled.Pipelines["main"].Steps["notify"].Output; got != "result" {
		t.Fatalf("step.Output = %q, want explicit %q preserved", got, "result")
	}
}
