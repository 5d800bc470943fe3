// Package rule implements the Rule Evaluator (spec §4.8): evaluating one
// rule's condition against the execution context and recording an
// explainability trace event when it fires.
package rule

import (
	"github.com/corintai/corint/internal/condeval"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/runtime"
)

// Evaluate evaluates rule's condition against ctx, appending a
// rule_triggered trace event when the result is True. Unknown and False are
// both non-triggering (spec §4.10: Unknown degrades to False for boolean
// consequences) but remain distinguishable in the returned Tri for callers
// that care (the ruleset evaluator currently does not).
func Evaluate(r *ir.RuleIR, ctx *runtime.Context) condeval.Tri {
	result := condeval.Eval(r.When, ctx, nil)
	if result == condeval.True {
		ctx.Trace.Append(runtime.TraceRuleTriggered, map[string]any{
			"rule_id": r.ID,
			"score":   r.Score,
		})
	}
	return result
}
