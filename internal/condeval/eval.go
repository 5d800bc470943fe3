// Package condeval evaluates compiled condition-dialect trees (spec §4.3,
// §4.8) against a runtime.Context. All evaluation is three-valued: every
// atom produces True, False, or Unknown, and Unknown degrades to False for
// the purposes of rule triggering and decision matching while still being
// observable in the explainability trace.
package condeval

import (
	"fmt"
	"strings"

	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/runtime"
)

// Tri is the three-valued result of evaluating a condition or atom.
type Tri int

const (
	False Tri = iota
	True
	Unknown
)

// Bool collapses Tri to a plain bool, per spec §4.10: "Unknown" degrades to
// False under boolean operators.
func (t Tri) Bool() bool { return t == True }

// Row is an optional set of "bare" database-row columns available only
// while evaluating a feature's `when` filter against a candidate row
// (spec §4.3: "DatabaseField atom distinct from a namespace atom").
type Row map[string]any

// Eval evaluates a compiled Condition tree against ctx. row is nil outside
// feature `when` filters.
func Eval(cond *expr.Condition, ctx *runtime.Context, row Row) Tri {
	if cond == nil {
		return True // an absent `when:` always matches (spec §4.5 catch-all, §4.6 step gating)
	}
	switch cond.Kind {
	case expr.CondAll:
		for _, child := range cond.Children {
			if Eval(child, ctx, row) != True {
				return False
			}
		}
		return True
	case expr.CondAny:
		sawUnknown := false
		for _, child := range cond.Children {
			r := Eval(child, ctx, row)
			if r == True {
				return True
			}
			if r == Unknown {
				sawUnknown = true
			}
		}
		if sawUnknown {
			return Unknown
		}
		return False
	case expr.CondNot:
		switch Eval(cond.Child, ctx, row) {
		case True:
			return False
		case False:
			return True
		default:
			return Unknown
		}
	case expr.CondAtom:
		return evalAtom(cond.Atom, ctx, row)
	}
	return Unknown
}

func evalAtom(atom *expr.Atom, ctx *runtime.Context, row Row) Tri {
	left, leftOK := resolveOperand(atom.Left, ctx, row)

	if atom.Op == expr.OpBoolRef {
		if !leftOK {
			return Unknown
		}
		b, ok := left.(bool)
		if !ok {
			return Unknown
		}
		return triFromBool(b)
	}

	switch atom.Op {
	case expr.OpIn, expr.OpNotIn:
		return evalMembership(atom, left, leftOK, ctx, row)
	}

	right, rightOK := resolveOperand(atom.Right, ctx, row)
	if !leftOK || !rightOK {
		return Unknown
	}

	switch atom.Op {
	case expr.OpEq:
		return triFromBool(looseEqual(left, right))
	case expr.OpNeq:
		return triFromBool(!looseEqual(left, right))
	case expr.OpLt, expr.OpGt, expr.OpLte, expr.OpGte:
		lf, lok := toFloat(left)
		rf, rok := toFloat(right)
		if !lok || !rok {
			return Unknown
		}
		switch atom.Op {
		case expr.OpLt:
			return triFromBool(lf < rf)
		case expr.OpGt:
			return triFromBool(lf > rf)
		case expr.OpLte:
			return triFromBool(lf <= rf)
		case expr.OpGte:
			return triFromBool(lf >= rf)
		}
	case expr.OpContains:
		ls, lok := toString(left)
		rs, rok := toString(right)
		if !lok || !rok {
			return Unknown
		}
		return triFromBool(strings.Contains(ls, rs))
	case expr.OpStartsWith:
		ls, lok := toString(left)
		rs, rok := toString(right)
		if !lok || !rok {
			return Unknown
		}
		return triFromBool(strings.HasPrefix(ls, rs))
	case expr.OpEndsWith:
		ls, lok := toString(left)
		rs, rok := toString(right)
		if !lok || !rok {
			return Unknown
		}
		return triFromBool(strings.HasSuffix(ls, rs))
	case expr.OpRegex:
		ls, lok := toString(left)
		pattern, rok := toString(right)
		if !lok || !rok {
			return Unknown
		}
		re, err := ctx.CompiledRegex(pattern)
		if err != nil {
			return Unknown
		}
		return triFromBool(re.MatchString(ls))
	}
	return Unknown
}

func evalMembership(atom *expr.Atom, left any, leftOK bool, ctx *runtime.Context, row Row) Tri {
	if !leftOK {
		return Unknown
	}

	var member, known bool

	switch atom.Right.Kind {
	case expr.OperandListRef:
		member, known = ctx.CheckListMembership(atom.Right.ListID, left)
	case expr.OperandArray:
		known = true
		for _, item := range atom.Right.Array {
			if looseEqual(left, item) {
				member = true
				break
			}
		}
	default:
		right, rightOK := resolveOperand(atom.Right, ctx, row)
		if !rightOK {
			return Unknown
		}
		arr, ok := right.([]any)
		if !ok {
			return Unknown
		}
		known = true
		for _, item := range arr {
			if looseEqual(left, item) {
				member = true
				break
			}
		}
	}

	if !known {
		return Unknown
	}
	if atom.Op == expr.OpNotIn {
		member = !member
	}
	return triFromBool(member)
}

func resolveOperand(op expr.Operand, ctx *runtime.Context, row Row) (any, bool) {
	switch op.Kind {
	case expr.OperandLiteral:
		return op.Literal, true
	case expr.OperandArray:
		return op.Array, true
	case expr.OperandPath:
		if op.Path.Namespace == expr.NsFeatures && len(op.Path.Segments) > 0 {
			_ = ctx.ResolveFeature(op.Path.Segments[0])
		}
		v, ok := ctx.Get(op.Path)
		if !ok || runtime.IsUnknown(v) {
			return nil, false
		}
		return v, true
	case expr.OperandDBField:
		if row == nil {
			return nil, false
		}
		v, ok := row[op.Field]
		return v, ok
	case expr.OperandListRef:
		return nil, false // only meaningful as the right side of in/not in
	}
	return nil, false
}

func triFromBool(b bool) Tri {
	if b {
		return True
	}
	return False
}

func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	as, aok := toString(a)
	bs, bok := toString(b)
	if aok && bok {
		return as == bs
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}

// DescribeAtom renders a human-readable form for trace/diagnostic output.
func DescribeAtom(a *expr.Atom) string {
	return fmt.Sprintf("%v %s %v", describeOperand(a.Left), a.Op, describeOperand(a.Right))
}

func describeOperand(op expr.Operand) string {
	switch op.Kind {
	case expr.OperandLiteral:
		return fmt.Sprintf("%v", op.Literal)
	case expr.OperandPath:
		return op.Path.String()
	case expr.OperandDBField:
		return op.Field
	case expr.OperandListRef:
		return "list." + op.ListID
	case expr.OperandArray:
		return fmt.Sprintf("%v", op.Array)
	}
	return "?"
}
