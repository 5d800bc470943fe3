// Package semantic implements the Semantic Analyzer (spec §4.4): `extends`
// resolution, reference-closure validation across every artifact kind,
// pipeline DAG wellformedness, and feature dependency ordering. Its output
// is the immutable ir.Repository the runtime operates on; nothing past this
// package ever touches raw artifact/YAML shapes again.
package semantic

import (
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// Analyze resolves and validates an UnresolvedRepo, producing the compiled
// IR. tree backs the compile-time `@{a.b.c}` config substitution pass (spec
// §4.2); it may be nil, in which case any `@{…}` reference fails to resolve.
// Compilation order matters: config substitution runs first so every later
// pass only ever sees already-resolved strings, then lists and features (no
// forward references to rules/rulesets/pipelines) compile first and are
// available for reference-closure validation of everything downstream.
func Analyze(repo *loader.UnresolvedRepo, tree *engineconfig.Tree) (*ir.Repository, error) {
	if err := substituteConfig(repo, tree); err != nil {
		return nil, err
	}

	lists, err := compileLists(repo)
	if err != nil {
		return nil, err
	}

	features, featureOrder, err := compileFeatures(repo, lists)
	if err != nil {
		return nil, err
	}

	rules, err := compileRules(repo, features, lists)
	if err != nil {
		return nil, err
	}

	rulesets, err := compileRulesets(repo, rules, features, lists)
	if err != nil {
		return nil, err
	}

	apis, err := compileAPIs(repo)
	if err != nil {
		return nil, err
	}

	services, err := compileServices(repo)
	if err != nil {
		return nil, err
	}

	pipelines, err := compilePipelines(repo, rulesets, apis, services, features, lists)
	if err != nil {
		return nil, err
	}

	registry, err := compileRegistry(repo, pipelines, features, lists)
	if err != nil {
		return nil, err
	}

	return &ir.Repository{
		Rules:        rules,
		Rulesets:     rulesets,
		Pipelines:    pipelines,
		Registry:     registry,
		Features:     features,
		FeatureOrder: featureOrder,
		Lists:        lists,
		APIs:         apis,
		Services:     services,
	}, nil
}
