package semantic

import (
	"fmt"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileRulesets resolves `extends` chains and compiles every ruleset's
// conclusion block (spec §3, §4.7). A child ruleset's own `conclusion`/
// `name`/`description`/`metadata`, when present, override the parent's; the
// rule list is the parent's rules followed by the child's own, deduplicated
// by id while preserving first-seen order.
func compileRulesets(repo *loader.UnresolvedRepo, rules map[string]*ir.RuleIR, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR) (map[string]*ir.RulesetIR, error) {
	r := &rulesetResolver{
		repo:     repo,
		rules:    rules,
		features: features,
		lists:    lists,
		resolved: map[string]*ir.RulesetIR{},
		onStack:  map[string]bool{},
	}
	for _, id := range sortedRulesetKeys(repo.Rulesets) {
		if _, err := r.resolve(id); err != nil {
			return nil, err
		}
	}
	return r.resolved, nil
}

type rulesetResolver struct {
	repo     *loader.UnresolvedRepo
	rules    map[string]*ir.RuleIR
	features map[string]*ir.FeatureIR
	lists    map[string]*ir.ListIR
	resolved map[string]*ir.RulesetIR
	onStack  map[string]bool
}

func (r *rulesetResolver) resolve(id string) (*ir.RulesetIR, error) {
	if already, ok := r.resolved[id]; ok {
		return already, nil
	}

	raw, ok := r.repo.Rulesets[id]
	if !ok {
		return nil, corinterr.Compile(corinterr.KindUnknownRef, "",
			fmt.Sprintf("unknown ruleset %q", id), nil)
	}
	if r.onStack[id] {
		return nil, corinterr.Compile(corinterr.KindCircularExtends, raw.SourcePath,
			fmt.Sprintf("circular extends chain reaches ruleset %q again", id), nil)
	}
	r.onStack[id] = true
	defer delete(r.onStack, id)

	var parent *ir.RulesetIR
	if raw.Extends != "" {
		if _, ok := r.repo.Rulesets[raw.Extends]; !ok {
			return nil, corinterr.Compile(corinterr.KindExtendsNotFound, raw.SourcePath,
				fmt.Sprintf("ruleset %q extends unknown ruleset %q", id, raw.Extends), nil)
		}
		p, err := r.resolve(raw.Extends)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	seen := map[string]bool{}
	var orderedRuleIDs []string
	if parent != nil {
		for _, pr := range parent.Rules {
			if !seen[pr.ID] {
				seen[pr.ID] = true
				orderedRuleIDs = append(orderedRuleIDs, pr.ID)
			}
		}
	}
	for _, rid := range raw.Rules {
		if !seen[rid] {
			seen[rid] = true
			orderedRuleIDs = append(orderedRuleIDs, rid)
		}
	}

	compiledRules := make([]*ir.RuleIR, 0, len(orderedRuleIDs))
	for _, rid := range orderedRuleIDs {
		rule, ok := r.rules[rid]
		if !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, raw.SourcePath,
				fmt.Sprintf("ruleset %q references unknown rule %q", id, rid), nil)
		}
		compiledRules = append(compiledRules, rule)
	}

	name := raw.Name
	desc := raw.Description
	meta := raw.Metadata
	if parent != nil {
		if name == "" {
			name = parent.Name
		}
		if desc == "" {
			desc = parent.Description
		}
		if meta == nil {
			meta = parent.Metadata
		}
	}

	var conclusion []ir.ConclusionArmIR
	if len(raw.Conclusion) > 0 {
		c, err := compileConclusionArms(raw.Conclusion, raw.SourcePath, r.features, r.lists)
		if err != nil {
			return nil, err
		}
		conclusion = c
	} else if parent != nil {
		conclusion = parent.Conclusion
	}

	ri := &ir.RulesetIR{
		ID:          raw.ID,
		Name:        name,
		Description: desc,
		Rules:       compiledRules,
		Conclusion:  conclusion,
		Metadata:    meta,
	}
	r.resolved[id] = ri
	return ri, nil
}

// compileConclusionArms compiles a ruleset's `conclusion:` arms, shared by
// both first-time compilation and (indirectly, by reuse) extends
// inheritance.
func compileConclusionArms(arms []artifact.ConclusionArm, location string, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR) ([]ir.ConclusionArmIR, error) {
	out := make([]ir.ConclusionArmIR, 0, len(arms))
	for _, a := range arms {
		cr, err := expr.CompileCondition(a.When, location)
		if err != nil {
			return nil, err
		}
		if err := validateRefs(cr, features, lists, location); err != nil {
			return nil, err
		}

		var reasonTmpl *expr.Template
		if a.Reason != "" {
			reasonTmpl, err = expr.CompileTemplate(a.Reason, location)
			if err != nil {
				return nil, err
			}
		}

		out = append(out, ir.ConclusionArmIR{
			When:      cr.Condition,
			Signal:    a.Signal,
			Reason:    reasonTmpl,
			Terminate: a.Terminate,
			Default:   a.Default,
		})
	}
	return out, nil
}
