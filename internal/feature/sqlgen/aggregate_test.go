package sqlgen

import (
	"strings"
	"testing"
	"time"

	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
)

func TestBuildAggregationSimpleCount(t *testing.T) {
	f := &ir.FeatureIR{
		Method:    "count",
		Entity:    "transactions",
		Dimension: "user_id",
		Field:     "id",
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	q, err := BuildAggregation(f, Postgres, "user-42", now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.Text, "SELECT COUNT(*) FROM \"transactions\" WHERE \"user_id\" = $1") {
		t.Fatalf("Text = %q", q.Text)
	}
	if len(q.Args) != 1 || q.Args[0] != "user-42" {
		t.Fatalf("Args = %v", q.Args)
	}
}

func TestBuildAggregationWithWindow(t *testing.T) {
	f := &ir.FeatureIR{
		Method:    "sum",
		Entity:    "transactions",
		Dimension: "user_id",
		Field:     "amount",
		Window:    "1h",
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	q, err := BuildAggregation(f, Postgres, "user-42", now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.Text, `"created_at" >= $2`) || !strings.Contains(q.Text, `"created_at" <= $3`) {
		t.Fatalf("Text = %q", q.Text)
	}
	if len(q.Args) != 3 {
		t.Fatalf("Args = %v, want 3 bound params", q.Args)
	}
	since := q.Args[1].(time.Time)
	if !since.Equal(now.Add(-time.Hour)) {
		t.Fatalf("since = %v, want %v", since, now.Add(-time.Hour))
	}
}

func TestBuildAggregationWithWhenPredicate(t *testing.T) {
	res, err := expr.CompileCondition(`country == "US"`, "features.yaml:1")
	if err != nil {
		t.Fatalf("compile condition: %v", err)
	}
	f := &ir.FeatureIR{
		Method:    "count",
		Entity:    "transactions",
		Dimension: "user_id",
		Field:     "id",
		When:      res.Condition,
	}
	now := time.Now()

	q, err := BuildAggregation(f, Postgres, "user-1", now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.Text, `"country" = $2`) {
		t.Fatalf("Text = %q", q.Text)
	}
	if len(q.Args) != 2 || q.Args[1] != "US" {
		t.Fatalf("Args = %v", q.Args)
	}
}

func TestBuildAggregationUnsupportedMethodOnDialect(t *testing.T) {
	f := &ir.FeatureIR{
		Method:    "median",
		Entity:    "transactions",
		Dimension: "user_id",
		Field:     "amount",
	}
	if _, err := BuildAggregation(f, MySQL, "user-1", time.Now(), nil); err == nil {
		t.Fatalf("expected an error: MySQL does not support median")
	}
}

func TestAggregateExprClickHousePercentile(t *testing.T) {
	p := 0.95
	f := &ir.FeatureIR{
		Method:    "percentile",
		Entity:    "transactions",
		Dimension: "user_id",
		Field:     "amount",
		Percentile: &p,
	}
	q, err := BuildAggregation(f, ClickHouse, "user-1", time.Now(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.Text, `quantile(0.95)("amount")`) {
		t.Fatalf("Text = %q", q.Text)
	}
}
