package semantic

import (
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileRules compiles every `rule:` artifact's `when:` condition and
// records the feature/list references it collects (spec §4.8).
func compileRules(repo *loader.UnresolvedRepo, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR) (map[string]*ir.RuleIR, error) {
	out := make(map[string]*ir.RuleIR, len(repo.Rules))
	for _, id := range sortedRuleKeys(repo.Rules) {
		r := repo.Rules[id]

		cr, err := expr.CompileCondition(r.When, r.SourcePath)
		if err != nil {
			return nil, err
		}
		if err := validateRefs(cr, features, lists, r.SourcePath); err != nil {
			return nil, err
		}

		out[id] = &ir.RuleIR{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			When:        cr.Condition,
			Score:       r.Score,
			Metadata:    r.Metadata,
			FeatureRefs: setKeys(cr.FeatureRefs),
			ListRefs:    setKeys(cr.ListRefs),
		}
	}
	return out, nil
}
