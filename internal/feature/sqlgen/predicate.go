package sqlgen

import (
	"fmt"
	"strings"

	"github.com/corintai/corint/internal/expr"
)

// RenderPredicate compiles a `when:` condition tree attached to an
// aggregation feature into a SQL boolean expression plus its bound
// arguments, in the style of spec §4.9's "substitutes ${event.x} inside
// when with placeholders": every non-DatabaseField operand is bound as a
// query parameter rather than interpolated as text, so the generated SQL
// is always parameterized. lookup resolves event/vars/features/etc operands
// to their current value (typically ctx.Lookup).
func RenderPredicate(cond *expr.Condition, dialect Dialect, lookup expr.Lookup, next *int) (string, []any, error) {
	if cond == nil {
		return "1=1", nil, nil
	}

	switch cond.Kind {
	case expr.CondAll, expr.CondAny:
		sep := " AND "
		if cond.Kind == expr.CondAny {
			sep = " OR "
		}
		var parts []string
		var args []any
		for _, child := range cond.Children {
			s, a, err := RenderPredicate(child, dialect, lookup, next)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+s+")")
			args = append(args, a...)
		}
		if len(parts) == 0 {
			return "1=1", nil, nil
		}
		return strings.Join(parts, sep), args, nil

	case expr.CondNot:
		s, a, err := RenderPredicate(cond.Child, dialect, lookup, next)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + s + ")", a, nil

	case expr.CondAtom:
		return renderAtom(cond.Atom, dialect, lookup, next)

	default:
		return "", nil, fmt.Errorf("sqlgen: unsupported condition kind %q", cond.Kind)
	}
}

func renderAtom(atom *expr.Atom, dialect Dialect, lookup expr.Lookup, next *int) (string, []any, error) {
	left, leftArgs, err := renderOperand(atom.Left, dialect, lookup, next)
	if err != nil {
		return "", nil, err
	}

	if atom.Op == expr.OpBoolRef {
		return fmt.Sprintf("%s = TRUE", left), leftArgs, nil
	}

	switch atom.Op {
	case expr.OpIn, expr.OpNotIn:
		in, inArgs, err := renderInList(atom.Right, dialect, lookup, next)
		if err != nil {
			return "", nil, err
		}
		op := "IN"
		if atom.Op == expr.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", left, op, in), append(leftArgs, inArgs...), nil
	}

	right, rightArgs, err := renderOperand(atom.Right, dialect, lookup, next)
	if err != nil {
		return "", nil, err
	}
	args := append(leftArgs, rightArgs...)

	switch atom.Op {
	case expr.OpEq:
		return fmt.Sprintf("%s = %s", left, right), args, nil
	case expr.OpNeq:
		return fmt.Sprintf("%s <> %s", left, right), args, nil
	case expr.OpLt:
		return fmt.Sprintf("%s < %s", left, right), args, nil
	case expr.OpGt:
		return fmt.Sprintf("%s > %s", left, right), args, nil
	case expr.OpLte:
		return fmt.Sprintf("%s <= %s", left, right), args, nil
	case expr.OpGte:
		return fmt.Sprintf("%s >= %s", left, right), args, nil
	case expr.OpContains:
		return fmt.Sprintf("%s LIKE %s", left, likeWrap(dialect, right, "%", "%")), args, nil
	case expr.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", left, likeWrap(dialect, right, "", "%")), args, nil
	case expr.OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", left, likeWrap(dialect, right, "%", "")), args, nil
	case expr.OpRegex:
		return fmt.Sprintf("%s %s %s", left, regexOperator(dialect), right), args, nil
	default:
		return "", nil, fmt.Errorf("sqlgen: unsupported operator %q", atom.Op)
	}
}

// likeWrap wraps a bound placeholder marker with literal wildcard
// characters via string concatenation, per dialect, so the value itself
// stays a bound parameter and the wildcards never touch unescaped input.
func likeWrap(dialect Dialect, boundPlaceholder, prefix, suffix string) string {
	if prefix == "" && suffix == "" {
		return boundPlaceholder
	}
	if dialect == SQLite {
		return fmt.Sprintf("('%s' || %s || '%s')", prefix, boundPlaceholder, suffix)
	}
	return fmt.Sprintf("CONCAT('%s', %s, '%s')", prefix, boundPlaceholder, suffix)
}

func regexOperator(dialect Dialect) string {
	switch dialect {
	case Postgres:
		return "~"
	case ClickHouse:
		return "REGEXP"
	default: // mysql, sqlite (sqlite requires the REGEXP extension to be loaded)
		return "REGEXP"
	}
}

func renderOperand(op expr.Operand, dialect Dialect, lookup expr.Lookup, next *int) (string, []any, error) {
	switch op.Kind {
	case expr.OperandDBField:
		return quoteIdent(dialect, op.Field), nil, nil
	case expr.OperandLiteral:
		return placeholder(dialect, next), []any{op.Literal}, nil
	case expr.OperandPath:
		val, _ := lookup(op.Path)
		return placeholder(dialect, next), []any{val}, nil
	case expr.OperandArray:
		return "", nil, fmt.Errorf("sqlgen: an inline array is only valid on the right side of in/not in")
	case expr.OperandListRef:
		return "", nil, fmt.Errorf("sqlgen: list membership is not supported inside an aggregation filter")
	default:
		return "", nil, fmt.Errorf("sqlgen: unsupported operand kind %q", op.Kind)
	}
}

func renderInList(op expr.Operand, dialect Dialect, lookup expr.Lookup, next *int) (string, []any, error) {
	switch op.Kind {
	case expr.OperandArray:
		placeholders := make([]string, 0, len(op.Array))
		args := make([]any, 0, len(op.Array))
		for _, item := range op.Array {
			placeholders = append(placeholders, placeholder(dialect, next))
			args = append(args, item)
		}
		return strings.Join(placeholders, ", "), args, nil
	case expr.OperandPath:
		val, _ := lookup(op.Path)
		arr, ok := val.([]any)
		if !ok {
			return "", nil, fmt.Errorf("sqlgen: %q did not resolve to an array", op.Path.String())
		}
		return renderInList(expr.Operand{Kind: expr.OperandArray, Array: arr}, dialect, lookup, next)
	default:
		return "", nil, fmt.Errorf("sqlgen: unsupported membership operand kind %q", op.Kind)
	}
}
