// Package ruleset implements the Ruleset Evaluator (spec §4.7): iterating a
// ruleset's flattened rule list, accumulating score, and matching the
// `conclusion:` arms against an augmented view of the evaluation (total
// score, triggered count, triggered rule ids) to produce a SignalRecord.
package ruleset

import (
	"github.com/corintai/corint/internal/condeval"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/rule"
	"github.com/corintai/corint/internal/runtime"
)

// Evaluate runs rs against ctx, stores the resulting SignalRecord at
// `results.<rs.ID>`, and returns it.
func Evaluate(rs *ir.RulesetIR, ctx *runtime.Context) *runtime.SignalRecord {
	var triggeredRules []string
	totalScore := 0

	for _, r := range rs.Rules {
		if rule.Evaluate(r, ctx).Bool() {
			triggeredRules = append(triggeredRules, r.ID)
			totalScore += r.Score
		}
	}

	triggeredAny := make([]any, len(triggeredRules))
	for i, id := range triggeredRules {
		triggeredAny[i] = id
	}
	augmented := condeval.Row{
		"total_score":     float64(totalScore),
		"triggered_count": float64(len(triggeredRules)),
		"triggered_rules": triggeredAny,
	}

	rec := &runtime.SignalRecord{
		RulesetID:      rs.ID,
		Signal:         string(runtime.SignalPass),
		TotalScore:     totalScore,
		TriggeredRules: triggeredRules,
	}

	for _, arm := range rs.Conclusion {
		matched := arm.Default || condeval.Eval(arm.When, ctx, augmented).Bool()
		if !matched {
			continue
		}
		rec.Signal = arm.Signal
		rec.Terminate = arm.Terminate
		if arm.Reason != nil {
			if reason, err := arm.Reason.Render(ctx.Lookup); err == nil {
				rec.Reason = reason
			}
		}
		break
	}

	ctx.Trace.Append(runtime.TraceDecisionMatched, map[string]any{
		"ruleset_id":  rs.ID,
		"signal":      rec.Signal,
		"total_score": rec.TotalScore,
	})

	ctx.SetResult(rs.ID, rec)
	return rec
}
