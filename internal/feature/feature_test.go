package feature

import (
	"testing"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/datasource"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/runtime"
)

func emptyGateway() *datasource.Gateway {
	return datasource.NewGateway(engineconfig.NewTree(nil), nil)
}

func newCtx() *runtime.Context {
	return runtime.New("trace-1", map[string]any{"timestamp": "2026-01-01T00:00:00Z"}, nil, nil, true)
}

func TestResolveUnknownFeatureIDMemoizesUnknown(t *testing.T) {
	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{}}
	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature("missing"); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{"missing"}})
	if !ok || !runtime.IsUnknown(v) {
		t.Fatalf("Get() = (%v, %v), want Unknown", v, ok)
	}
}

func TestResolveAggregationWithoutDatasourceMemoizesUnknown(t *testing.T) {
	tmpl, err := expr.CompileTemplate("user-1", "test")
	if err != nil {
		t.Fatalf("CompileTemplate() error: %v", err)
	}
	f := &ir.FeatureIR{
		ID:                     "txn_count_1h",
		Kind:                   artifact.FeatureAggregation,
		DatasourceID:           "ds-unconfigured",
		DimensionValueTemplate: tmpl,
	}
	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{f.ID: f}}
	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature(f.ID); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{f.ID}})
	if !ok || !runtime.IsUnknown(v) {
		t.Fatalf("Get() = (%v, %v), want Unknown for an unconfigured datasource", v, ok)
	}
}

func TestResolveLookupWithoutDatasourceFallsBackToConfiguredDefault(t *testing.T) {
	tmpl, err := expr.CompileTemplate("some-key", "test")
	if err != nil {
		t.Fatalf("CompileTemplate() error: %v", err)
	}
	f := &ir.FeatureIR{
		ID:           "bin_country",
		Kind:         artifact.FeatureLookup,
		DatasourceID: "ds-unconfigured",
		KeyTemplate:  tmpl,
		Fallback:     "UNKNOWN",
	}
	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{f.ID: f}}
	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature(f.ID); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{f.ID}})
	if !ok || v != "UNKNOWN" {
		t.Fatalf("Get() = (%v, %v), want (UNKNOWN, true)", v, ok)
	}
}

func TestResolveExpressionComputesFromDependencies(t *testing.T) {
	arith, err := expr.CompileArithmetic("a + b", "test", map[string]bool{"a": true, "b": true})
	if err != nil {
		t.Fatalf("CompileArithmetic() error: %v", err)
	}
	a := &ir.FeatureIR{ID: "a", Kind: artifact.FeatureLookup, KeyTemplate: mustTemplate(t, "k"), Fallback: float64(2)}
	b := &ir.FeatureIR{ID: "b", Kind: artifact.FeatureLookup, KeyTemplate: mustTemplate(t, "k"), Fallback: float64(3)}
	sum := &ir.FeatureIR{ID: "sum", Kind: artifact.FeatureExpression, Arithmetic: arith, DependsOn: []string{"a", "b"}}

	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{
		"a": a, "b": b, "sum": sum,
	}}
	// Every lookup feature references the same unconfigured datasource, so
	// each falls back to its configured constant instead of erroring.
	a.DatasourceID = "ds-unconfigured"
	b.DatasourceID = "ds-unconfigured"

	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature("sum"); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{"sum"}})
	if !ok || v != float64(5) {
		t.Fatalf("Get() = (%v, %v), want (5, true)", v, ok)
	}
}

func TestResolveExpressionUnknownDependencyPropagatesUnknown(t *testing.T) {
	arith, err := expr.CompileArithmetic("a + 1", "test", map[string]bool{"a": true})
	if err != nil {
		t.Fatalf("CompileArithmetic() error: %v", err)
	}
	sum := &ir.FeatureIR{ID: "sum", Kind: artifact.FeatureExpression, Arithmetic: arith, DependsOn: []string{"a"}}
	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{"sum": sum}}

	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature("sum"); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{"sum"}})
	if !ok || !runtime.IsUnknown(v) {
		t.Fatalf("Get() = (%v, %v), want Unknown when a dependency is unresolvable", v, ok)
	}
}

func TestResolveFeatureMemoizesOnlyOnce(t *testing.T) {
	tmpl := mustTemplate(t, "k")
	f := &ir.FeatureIR{ID: "bin_country", Kind: artifact.FeatureLookup, DatasourceID: "ds-unconfigured", KeyTemplate: tmpl, Fallback: "X"}
	repo := &ir.Repository{Features: map[string]*ir.FeatureIR{f.ID: f}}
	e := New(repo, emptyGateway())
	ctx := newCtx()
	ctx.SetFeatureResolver(e.Resolver())

	if err := ctx.ResolveFeature(f.ID); err != nil {
		t.Fatalf("ResolveFeature() error: %v", err)
	}
	_ = ctx.Set(expr.Path{Namespace: expr.NsFeatures, Segments: []string{f.ID}}, "manually-overwritten")
	if err := ctx.ResolveFeature(f.ID); err != nil {
		t.Fatalf("second ResolveFeature() error: %v", err)
	}
	v, _ := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{f.ID}})
	if v != "manually-overwritten" {
		t.Fatalf("ResolveFeature() recomputed an already-memoized feature, got %v", v)
	}
}

func TestNormalizeNumeric(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{nil, float64(0)},
		{float64(1.5), float64(1.5)},
		{int64(7), float64(7)},
		{[]byte("US"), "US"},
	}
	for _, c := range cases {
		if got := normalizeNumeric(c.in); got != c.want {
			t.Errorf("normalizeNumeric(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func mustTemplate(t *testing.T, raw string) *expr.Template {
	t.Helper()
	tmpl, err := expr.CompileTemplate(raw, "test")
	if err != nil {
		t.Fatalf("CompileTemplate(%q) error: %v", raw, err)
	}
	return tmpl
}
