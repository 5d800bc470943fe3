package expr

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/PaesslerAG/gval"

	"github.com/corintai/corint/internal/corinterr"
)

// Arithmetic is a compiled feature-expression (spec §4.3 arithmetic
// dialect): `E := E (+|-) T | T`, `T := T (*|/) F | F`,
// `F := number | identifier | '(' E ')'`. Evaluation is delegated to
// github.com/PaesslerAG/gval (gval.Full), which implements this grammar
// and more. CompileArithmetic restricts identifiers to declared feature IDs,
// which rules out gval's named functions and constants; gval's other
// operators (comparison, logical) are not rejected. Dependency
// extraction for the feature DAG uses a standalone identifier scan, since
// gval does not expose its parsed AST for introspection.
type Arithmetic struct {
	raw        string
	evaluable  gval.Evaluable
	dependsOn  []string
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// gvalReservedWords lists tokens the identifier scan skips instead of
// treating them as feature dependencies. It is empty, so every identifier
// token must be a declared feature ID.
var gvalReservedWords = map[string]bool{}

// CompileArithmetic compiles expression against the set of feature IDs
// known in the same registry (knownFeatureIDs); every identifier in the
// expression must be a declared feature ID.
func CompileArithmetic(expression, location string, knownFeatureIDs map[string]bool) (*Arithmetic, error) {
	evaluable, err := gval.Full().NewEvaluable(expression)
	if err != nil {
		return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
			fmt.Sprintf("invalid arithmetic expression %q", expression), err)
	}

	seen := map[string]bool{}
	var deps []string
	for _, tok := range identifierPattern.FindAllString(expression, -1) {
		if gvalReservedWords[tok] || seen[tok] {
			continue
		}
		if !knownFeatureIDs[tok] {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, location,
				fmt.Sprintf("arithmetic expression references unknown feature %q", tok), nil)
		}
		seen[tok] = true
		deps = append(deps, tok)
	}

	return &Arithmetic{raw: expression, evaluable: evaluable, dependsOn: deps}, nil
}

// DependsOn returns the feature IDs this expression depends on, in first-
// appearance order.
func (a *Arithmetic) DependsOn() []string { return a.dependsOn }

// Raw returns the original expression text.
func (a *Arithmetic) Raw() string { return a.raw }

// ErrDivideByZero is returned by Evaluate on division by zero (spec §4.9:
// "Division by zero yields Unknown").
var ErrDivideByZero = fmt.Errorf("division by zero")

// Evaluate computes the expression against a set of already-resolved
// feature values (identifier -> numeric value).
func (a *Arithmetic) Evaluate(values map[string]any) (float64, error) {
	result, err := a.evaluable.EvalFloat64(context.Background(), values)
	if err != nil {
		return 0, corinterr.Recoverable(corinterr.KindTypeMismatch,
			fmt.Sprintf("evaluate arithmetic expression %q", a.raw), err)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, ErrDivideByZero
	}
	return result, nil
}
