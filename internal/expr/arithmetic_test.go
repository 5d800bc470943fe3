package expr

import (
	"testing"

	"github.com/corintai/corint/internal/corinterr"
)

func TestCompileArithmeticDependsOn(t *testing.T) {
	known := map[string]bool{"avg_txn_amount": true, "txn_count": true}

	a, err := CompileArithmetic("avg_txn_amount * txn_count", "features.yaml:5", known)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := a.DependsOn()
	if len(deps) != 2 || deps[0] != "avg_txn_amount" || deps[1] != "txn_count" {
		t.Fatalf("DependsOn() = %v, want [avg_txn_amount txn_count]", deps)
	}
	if a.Raw() != "avg_txn_amount * txn_count" {
		t.Fatalf("Raw() = %q", a.Raw())
	}
}

func TestCompileArithmeticUnknownIdentifier(t *testing.T) {
	known := map[string]bool{"avg_txn_amount": true}

	_, err := CompileArithmetic("avg_txn_amount + missing_feature", "features.yaml:5", known)
	if err == nil {
		t.Fatalf("expected an error for an undeclared identifier")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindUnknownRef {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindUnknownRef)
	}
}

func TestCompileArithmeticInvalidSyntax(t *testing.T) {
	_, err := CompileArithmetic("((unbalanced", "features.yaml:5", map[string]bool{})
	if err == nil {
		t.Fatalf("expected a compile error for invalid syntax")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindInvalidExpression {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindInvalidExpression)
	}
}

func TestArithmeticEvaluate(t *testing.T) {
	known := map[string]bool{"a": true, "b": true}
	a, err := CompileArithmetic("(a + b) / 2", "features.yaml:1", known)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := a.Evaluate(map[string]any{"a": 10.0, "b": 20.0})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != 15 {
		t.Fatalf("Evaluate() = %v, want 15", got)
	}
}

func TestArithmeticEvaluateDivideByZero(t *testing.T) {
	known := map[string]bool{"a": true, "b": true}
	a, err := CompileArithmetic("a / b", "features.yaml:1", known)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	_, err = a.Evaluate(map[string]any{"a": 1.0, "b": 0.0})
	if err != ErrDivideByZero {
		t.Fatalf("Evaluate() err = %v, want ErrDivideByZero", err)
	}
}
