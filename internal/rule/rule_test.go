package rule

import (
	"testing"

	"github.com/corintai/corint/internal/condeval"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/runtime"
)

func newCtx() *runtime.Context {
	return runtime.New("trace-1", map[string]any{"amount": 1500.0}, nil, nil, true)
}

func amountGtCondition(threshold float64) *expr.Condition {
	return &expr.Condition{
		Kind: expr.CondAtom,
		Atom: &expr.Atom{
			Op:   expr.OpGt,
			Left: expr.Operand{Kind: expr.OperandPath, Path: expr.Path{Namespace: expr.NsEvent, Segments: []string{"amount"}}},
			Right: expr.Operand{Kind: expr.OperandLiteral, Literal: threshold},
		},
	}
}

func TestEvaluateTrueAppendsTraceEvent(t *testing.T) {
	r := &ir.RuleIR{ID: "high_amount", Score: 10, When: amountGtCondition(1000)}
	ctx := newCtx()

	result := Evaluate(r, ctx)
	if result != condeval.True {
		t.Fatalf("Evaluate() = %v, want True", result)
	}

	events := ctx.Trace.Events()
	found := false
	for _, e := range events {
		if e.Kind == runtime.TraceRuleTriggered {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a rule_triggered trace event, got %v", events)
	}
}

func TestEvaluateFalseAppendsNoTraceEvent(t *testing.T) {
	r := &ir.RuleIR{ID: "high_amount", Score: 10, When: amountGtCondition(100000)}
	ctx := newCtx()

	result := Evaluate(r, ctx)
	if result != condeval.False {
		t.Fatalf("Evaluate() = %v, want False", result)
	}
	if len(ctx.Trace.Events()) != 0 {
		t.Fatalf("expected no trace events for a non-triggering rule, got %v", ctx.Trace.Events())
	}
}

func TestEvaluateNilWhenAlwaysTriggers(t *testing.T) {
	r := &ir.RuleIR{ID: "catch_all", Score: 1, When: nil}
	result := Evaluate(r, newCtx())
	if result != condeval.True {
		t.Fatalf("Evaluate() = %v, want True for a nil when", result)
	}
}
