// Package engine ties the compiler and runtime together: Compile loads and
// analyzes a repository directory into an immutable ir.Repository, Reload
// atomically swaps it for a freshly compiled one (spec §C.1 hot reload),
// and Decide evaluates one inbound event against the current snapshot.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/datasource"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/feature"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/list"
	"github.com/corintai/corint/internal/loader"
	"github.com/corintai/corint/internal/pipeline"
	"github.com/corintai/corint/internal/registry"
	"github.com/corintai/corint/internal/runtime"
	"github.com/corintai/corint/internal/semantic"
)

// Engine is the embedding application's single entry point: compile once,
// decide many times, reload on demand.
type Engine struct {
	opts    engineconfig.EngineOptions
	tree    *engineconfig.Tree
	logger  *corintlog.Logger
	metrics *metrics

	gateway *datasource.Gateway
	repo    atomic.Pointer[ir.Repository]
}

// New creates an Engine. tree backs the `env` namespace and every
// `@{a.b.c}` config substitution; reg may be nil to skip metrics
// registration (e.g. in tests). Returns an error if opts fails validation
// (e.g. an unrecognized CORINT_DEFAULT_RESULT).
func New(opts engineconfig.EngineOptions, tree *engineconfig.Tree, logger *corintlog.Logger, reg prometheus.Registerer) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, corinterr.Fatal(corinterr.KindInternalInvariant, "invalid engine options: "+err.Error(), nil)
	}
	return &Engine{
		opts:    opts,
		tree:    tree,
		logger:  logger,
		metrics: newMetrics(reg),
		gateway: datasource.NewGateway(tree, logger),
	}, nil
}

// Compile loads and analyzes the repository at root, installing it as the
// engine's active snapshot. Call once at startup.
func (e *Engine) Compile(root string) error {
	return e.Reload(context.Background(), root)
}

// Reload recompiles the repository at root and atomically swaps it in; a
// compile error leaves the currently active snapshot untouched (spec
// §C.1: "an in-flight decide() always sees a complete, self-consistent
// snapshot").
func (e *Engine) Reload(ctx context.Context, root string) error {
	start := time.Now()

	raw, err := loader.Load(root)
	if err != nil {
		return err
	}
	compiled, err := semantic.Analyze(raw, e.tree)
	if err != nil {
		return err
	}

	e.repo.Store(compiled)
	e.metrics.compileDuration.Observe(time.Since(start).Seconds())
	e.logger.WithTrace("").WithField("root", root).Info("repository compiled")
	return nil
}

// Repository returns the currently active compiled snapshot, or nil if
// Compile/Reload has never succeeded.
func (e *Engine) Repository() *ir.Repository {
	return e.repo.Load()
}

// Decide evaluates one inbound event against the active snapshot: registry
// match, then pipeline execution (spec §4.5, §4.6).
func (e *Engine) Decide(ctx context.Context, event map[string]any) (*runtime.DecisionRecord, error) {
	start := time.Now()
	traceID := corintlog.NewTraceID()

	repo := e.repo.Load()
	if repo == nil {
		return nil, corinterr.Fatal(corinterr.KindInternalInvariant, "engine has no compiled repository loaded", nil)
	}

	rctx := runtime.New(traceID, event, e.tree.Flatten(), sysNamespace(traceID), e.opts.TraceEnabled)

	featureEngine := feature.New(repo, e.gateway)
	rctx.SetFeatureResolver(featureEngine.Resolver())

	listChecker := list.New(repo, e.gateway)
	rctx.SetListChecker(listChecker.CheckFunc())

	pipelineID, err := registry.Match(repo.Registry, rctx)
	if err != nil {
		e.recordDecide(start, "no_match")
		return nil, err
	}

	p, ok := repo.Pipelines[pipelineID]
	if !ok {
		e.recordDecide(start, "error")
		return nil, corinterr.Fatal(corinterr.KindStepNotFound, "registry matched unknown pipeline "+pipelineID, nil)
	}

	executor := pipeline.New(repo, e.gateway)
	rec, err := executor.Run(rctx, p)
	if err != nil {
		e.recordDecide(start, "error")
		return nil, err
	}
	if rec == nil {
		rec = &runtime.DecisionRecord{Result: e.opts.DefaultDecisionResult, Signals: rctx.Results(), Trace: rctx.Trace.Events()}
	}

	e.recordDecide(start, rec.Result)
	for rulesetID, sig := range rec.Signals {
		for _, ruleID := range sig.TriggeredRules {
			e.metrics.ruleTriggered.WithLabelValues(ruleID).Inc()
		}
		_ = rulesetID
	}
	return rec, nil
}

func (e *Engine) recordDecide(start time.Time, result string) {
	e.metrics.decideDuration.Observe(time.Since(start).Seconds())
	e.metrics.decideTotal.WithLabelValues(result).Inc()
}

func sysNamespace(traceID string) map[string]any {
	return map[string]any{
		"trace_id":  traceID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
}
