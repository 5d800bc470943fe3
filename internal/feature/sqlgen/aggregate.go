package sqlgen

import (
	"fmt"
	"time"

	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
)

// Query is a rendered, parameterized SQL statement ready for the Datasource
// Gateway's SQL backend to execute.
type Query struct {
	Text string
	Args []any
}

// BuildAggregation renders the SQL statement computing an aggregation
// feature's value for one entity at one point in time (spec §4.9, §6.3).
// now is the instant the window is measured back from — normally the
// request's `event.timestamp`, falling back to wall-clock time if absent.
func BuildAggregation(f *ir.FeatureIR, dialect Dialect, entityValue string, now time.Time, lookup expr.Lookup) (Query, error) {
	aggExpr, err := aggregateExpr(f.Method, f.Field, f.Percentile, dialect)
	if err != nil {
		return Query{}, err
	}

	n := 0
	var args []any

	clauses := []string{fmt.Sprintf("%s = %s", quoteIdent(dialect, f.Dimension), placeholder(dialect, &n))}
	args = append(args, entityValue)

	if f.Window != "" {
		window, err := ParseWindow(f.Window)
		if err != nil {
			return Query{}, err
		}
		since := now.Add(-window)
		tsCol := f.TimestampColumn
		if tsCol == "" {
			tsCol = "created_at"
		}
		clauses = append(clauses, fmt.Sprintf("%s >= %s", quoteIdent(dialect, tsCol), placeholder(dialect, &n)))
		args = append(args, since)
		clauses = append(clauses, fmt.Sprintf("%s <= %s", quoteIdent(dialect, tsCol), placeholder(dialect, &n)))
		args = append(args, now)
	}

	if f.When != nil {
		pred, predArgs, err := RenderPredicate(f.When, dialect, lookup, &n)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, pred)
		args = append(args, predArgs...)
	}

	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", aggExpr, quoteIdent(dialect, f.Entity), where)
	return Query{Text: query, Args: args}, nil
}

// aggregateExpr renders the SELECT-list aggregate expression for method over
// field, per dialect. Each dialect supports a different subset of
// statistical aggregates; a method a dialect can't express returns an error
// when the query is rendered (at feature resolution, not at compile time)
// rather than a silent approximation.
func aggregateExpr(method, field string, percentile *float64, dialect Dialect) (string, error) {
	col := quoteIdent(dialect, field)

	switch dialect {
	case Postgres:
		switch method {
		case "count":
			return "COUNT(*)", nil
		case "sum":
			return fmt.Sprintf("SUM(%s)", col), nil
		case "avg":
			return fmt.Sprintf("AVG(%s)", col), nil
		case "min":
			return fmt.Sprintf("MIN(%s)", col), nil
		case "max":
			return fmt.Sprintf("MAX(%s)", col), nil
		case "distinct":
			return fmt.Sprintf("COUNT(DISTINCT %s)", col), nil
		case "stddev":
			return fmt.Sprintf("STDDEV_POP(%s)", col), nil
		case "median":
			return fmt.Sprintf("PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)", col), nil
		case "percentile":
			p := requirePercentile(percentile)
			return fmt.Sprintf("PERCENTILE_CONT(%v) WITHIN GROUP (ORDER BY %s)", p, col), nil
		}

	case MySQL:
		switch method {
		case "count":
			return "COUNT(*)", nil
		case "sum":
			return fmt.Sprintf("SUM(%s)", col), nil
		case "avg":
			return fmt.Sprintf("AVG(%s)", col), nil
		case "min":
			return fmt.Sprintf("MIN(%s)", col), nil
		case "max":
			return fmt.Sprintf("MAX(%s)", col), nil
		case "distinct":
			return fmt.Sprintf("COUNT(DISTINCT %s)", col), nil
		case "stddev":
			return fmt.Sprintf("STDDEV_POP(%s)", col), nil
		}

	case SQLite:
		switch method {
		case "count":
			return "COUNT(*)", nil
		case "sum":
			return fmt.Sprintf("SUM(%s)", col), nil
		case "avg":
			return fmt.Sprintf("AVG(%s)", col), nil
		case "min":
			return fmt.Sprintf("MIN(%s)", col), nil
		case "max":
			return fmt.Sprintf("MAX(%s)", col), nil
		case "distinct":
			return fmt.Sprintf("COUNT(DISTINCT %s)", col), nil
		}

	case ClickHouse:
		switch method {
		case "count":
			return "count()", nil
		case "sum":
			return fmt.Sprintf("sum(%s)", col), nil
		case "avg":
			return fmt.Sprintf("avg(%s)", col), nil
		case "min":
			return fmt.Sprintf("min(%s)", col), nil
		case "max":
			return fmt.Sprintf("max(%s)", col), nil
		case "distinct":
			return fmt.Sprintf("uniqExact(%s)", col), nil
		case "stddev":
			return fmt.Sprintf("stddevPop(%s)", col), nil
		case "median":
			return fmt.Sprintf("quantile(0.5)(%s)", col), nil
		case "percentile":
			p := requirePercentile(percentile)
			return fmt.Sprintf("quantile(%v)(%s)", p, col), nil
		}
	}

	return "", fmt.Errorf("sqlgen: method %q is not supported on dialect %q", method, dialect)
}

func requirePercentile(p *float64) float64 {
	if p == nil {
		return 0.5
	}
	return *p
}
