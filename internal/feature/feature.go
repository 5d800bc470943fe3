// Package feature implements the Feature Engine (spec §4.9): lazy,
// memoized computation of aggregation/lookup/expression features on first
// reference from within a rule/ruleset/feature condition.
package feature

import (
	"context"
	"time"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/datasource"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/runtime"
)

// Engine resolves feature values against the compiled Repository, backed by
// the Datasource Gateway.
type Engine struct {
	repo    *ir.Repository
	gateway *datasource.Gateway
}

// New creates a feature Engine.
func New(repo *ir.Repository, gateway *datasource.Gateway) *Engine {
	return &Engine{repo: repo, gateway: gateway}
}

// Resolver returns the closure wired into runtime.Context.SetFeatureResolver.
func (e *Engine) Resolver() func(ctx *runtime.Context, featureID string) error {
	return e.resolve
}

func (e *Engine) resolve(ctx *runtime.Context, featureID string) error {
	f, ok := e.repo.Features[featureID]
	if !ok {
		e.memoize(ctx, featureID, runtime.Unknown{})
		return nil
	}

	switch f.Kind {
	case artifact.FeatureAggregation:
		return e.resolveAggregation(ctx, f)
	case artifact.FeatureLookup:
		return e.resolveLookup(ctx, f)
	case artifact.FeatureExpression:
		return e.resolveExpression(ctx, f)
	default:
		e.memoize(ctx, featureID, runtime.Unknown{})
		return nil
	}
}

func (e *Engine) resolveAggregation(ctx *runtime.Context, f *ir.FeatureIR) error {
	entityValue, err := f.DimensionValueTemplate.Render(ctx.Lookup)
	if err != nil {
		e.memoize(ctx, f.ID, runtime.Unknown{})
		return nil
	}

	now := eventTimestamp(ctx)

	callCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	value, err := e.gateway.AggregationValue(callCtx, f, entityValue, now, ctx.Lookup)
	if err != nil {
		if corinterr.IsRecoverable(err) {
			ctx.Trace.Append(runtime.TraceRecoverableErr, map[string]any{"feature_id": f.ID, "error": err.Error()})
			e.memoize(ctx, f.ID, runtime.Unknown{})
			return nil
		}
		return err
	}

	e.memoize(ctx, f.ID, normalizeNumeric(value))
	ctx.Trace.Append(runtime.TraceFeatureComputed, map[string]any{"feature_id": f.ID, "kind": "aggregation"})
	return nil
}

func (e *Engine) resolveLookup(ctx *runtime.Context, f *ir.FeatureIR) error {
	key, err := f.KeyTemplate.Render(ctx.Lookup)
	if err != nil {
		e.memoize(ctx, f.ID, runtime.Unknown{})
		return nil
	}

	callCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value, found, err := e.gateway.LookupValue(callCtx, f.DatasourceID, key)
	if err != nil {
		if corinterr.IsRecoverable(err) {
			ctx.Trace.Append(runtime.TraceRecoverableErr, map[string]any{"feature_id": f.ID, "error": err.Error()})
			e.memoize(ctx, f.ID, e.lookupFallback(f, key))
			return nil
		}
		return err
	}
	if !found {
		e.memoize(ctx, f.ID, e.lookupFallback(f, key))
		return nil
	}

	e.memoize(ctx, f.ID, value)
	ctx.Trace.Append(runtime.TraceFeatureComputed, map[string]any{"feature_id": f.ID, "kind": "lookup"})
	return nil
}

// lookupFallback resolves a failed/missing lookup to the feature's declared
// fallback, then the datasource's last-known-good cached value for key, then
// Unknown (spec §7).
func (e *Engine) lookupFallback(f *ir.FeatureIR, key string) any {
	if f.Fallback != nil {
		return f.Fallback
	}
	if cached, ok := e.gateway.CachedLookupValue(f.DatasourceID, key); ok {
		return cached
	}
	return runtime.Unknown{}
}

func (e *Engine) resolveExpression(ctx *runtime.Context, f *ir.FeatureIR) error {
	values := make(map[string]any, len(f.DependsOn))
	for _, dep := range f.DependsOn {
		if err := ctx.ResolveFeature(dep); err != nil {
			return err
		}
		v, _ := ctx.Get(expr.Path{Namespace: expr.NsFeatures, Segments: []string{dep}})
		if runtime.IsUnknown(v) {
			e.memoize(ctx, f.ID, runtime.Unknown{})
			return nil
		}
		values[dep] = v
	}

	result, err := f.Arithmetic.Evaluate(values)
	if err != nil {
		e.memoize(ctx, f.ID, runtime.Unknown{})
		return nil
	}

	e.memoize(ctx, f.ID, result)
	ctx.Trace.Append(runtime.TraceFeatureComputed, map[string]any{"feature_id": f.ID, "kind": "expression"})
	return nil
}

func (e *Engine) memoize(ctx *runtime.Context, featureID string, value any) {
	_ = ctx.Set(expr.Path{Namespace: expr.NsFeatures, Segments: []string{featureID}}, value)
}

// normalizeNumeric converts a raw scalar from a SQL driver (which may
// return int64, float64, []byte, or nil for a NULL aggregate): int64 becomes
// float64, a NULL aggregate becomes 0, []byte becomes a string, and any other
// type is returned unchanged.
func normalizeNumeric(v any) any {
	switch t := v.(type) {
	case nil:
		return float64(0)
	case float64:
		return t
	case int64:
		return float64(t)
	case []byte:
		return string(t)
	default:
		return t
	}
}

func eventTimestamp(ctx *runtime.Context) time.Time {
	v, ok := ctx.Get(expr.Path{Namespace: expr.NsEvent, Segments: []string{"timestamp"}})
	if !ok {
		return time.Now()
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Now()
}
