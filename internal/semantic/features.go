package semantic

import (
	"fmt"
	"sort"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileFeatures compiles every `features:` entry and returns it alongside
// a topological computation order (Kahn's algorithm over derived-expression
// dependencies, spec §4.9: "a feature referencing another feature forms a
// dependency the compiler must order"). Aggregation and lookup features have
// no declared dependencies and sort to the front of their component.
func compileFeatures(repo *loader.UnresolvedRepo, lists map[string]*ir.ListIR) (map[string]*ir.FeatureIR, []string, error) {
	knownIDs := make(map[string]bool, len(repo.Features))
	for id := range repo.Features {
		knownIDs[id] = true
	}

	out := make(map[string]*ir.FeatureIR, len(repo.Features))
	for _, id := range sortedFeatureKeys(repo.Features) {
		f := repo.Features[id]

		fi := &ir.FeatureIR{
			ID:              f.ID,
			Kind:            f.Kind,
			Method:          f.Method,
			DatasourceID:    f.Datasource,
			Entity:          f.Entity,
			Dimension:       f.Dimension,
			Field:           f.Field,
			Window:          f.Window,
			Percentile:      f.Percentile,
			TimestampColumn: f.TimestampColumn,
			Fallback:        f.Fallback,
		}

		switch f.Kind {
		case artifact.FeatureAggregation:
			if f.Method == "" || f.Datasource == "" || f.Entity == "" || f.Field == "" {
				return nil, nil, corinterr.Compile(corinterr.KindMissingField, f.SourcePath,
					fmt.Sprintf("aggregation feature %q requires method, datasource, entity and field", id), nil)
			}
			if f.Window != "" && !windowPattern.MatchString(f.Window) {
				return nil, nil, corinterr.Compile(corinterr.KindInvalidExpression, f.SourcePath,
					fmt.Sprintf("feature %q has an invalid window %q", id, f.Window), nil)
			}
			if f.Method == "percentile" && f.Percentile == nil {
				return nil, nil, corinterr.Compile(corinterr.KindMissingField, f.SourcePath,
					fmt.Sprintf("percentile feature %q requires percentile", id), nil)
			}
		case artifact.FeatureLookup:
			if f.Datasource == "" || f.KeyTemplate == "" {
				return nil, nil, corinterr.Compile(corinterr.KindMissingField, f.SourcePath,
					fmt.Sprintf("lookup feature %q requires datasource and key_template", id), nil)
			}
		case artifact.FeatureExpression:
			if f.Expression == "" {
				return nil, nil, corinterr.Compile(corinterr.KindMissingField, f.SourcePath,
					fmt.Sprintf("expression feature %q requires expression", id), nil)
			}
		default:
			return nil, nil, corinterr.Compile(corinterr.KindDialectViolation, f.SourcePath,
				fmt.Sprintf("feature %q has unknown kind %q", id, f.Kind), nil)
		}

		if f.DimensionValue != "" {
			tmpl, err := expr.CompileTemplate(f.DimensionValue, f.SourcePath)
			if err != nil {
				return nil, nil, err
			}
			fi.DimensionValueTemplate = tmpl
		}

		if f.When != nil {
			cr, err := expr.CompileCondition(f.When, f.SourcePath)
			if err != nil {
				return nil, nil, err
			}
			if err := validateRefs(cr, out, lists, f.SourcePath); err != nil {
				return nil, nil, err
			}
			fi.When = cr.Condition
		}

		if f.KeyTemplate != "" {
			tmpl, err := expr.CompileTemplate(f.KeyTemplate, f.SourcePath)
			if err != nil {
				return nil, nil, err
			}
			fi.KeyTemplate = tmpl
		}

		if f.Kind == artifact.FeatureExpression {
			arith, err := expr.CompileArithmetic(f.Expression, f.SourcePath, knownIDs)
			if err != nil {
				return nil, nil, err
			}
			fi.Arithmetic = arith
			fi.DependsOn = arith.DependsOn()
		}

		out[id] = fi
	}

	order, err := topoSortFeatures(out)
	if err != nil {
		return nil, nil, err
	}

	return out, order, nil
}

// topoSortFeatures orders features so every expression feature's
// dependencies are computed first, via Kahn's algorithm over the
// DependsOn adjacency. A leftover in-degree after the queue drains means a
// dependency cycle (spec §4.9 / §7 KindFeatureCycle).
func topoSortFeatures(features map[string]*ir.FeatureIR) ([]string, error) {
	ids := make([]string, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inDegree := make(map[string]int, len(ids))
	dependents := map[string][]string{}
	for _, id := range ids {
		inDegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range features[id].DependsOn {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string{}, dependents[id]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}

	if len(order) != len(ids) {
		return nil, corinterr.Compile(corinterr.KindFeatureCycle, "",
			"feature expression dependency graph contains a cycle", nil)
	}
	return order, nil
}
