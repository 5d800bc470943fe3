package expr

import "testing"

func TestCompileConditionNilIsEmpty(t *testing.T) {
	res, err := CompileCondition(nil, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition != nil {
		t.Fatalf("expected a nil Condition for an absent when-block")
	}
}

func TestCompileConditionAtomComparison(t *testing.T) {
	res, err := CompileCondition(`event.amount > 1000`, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := res.Condition
	if cond.Kind != CondAtom {
		t.Fatalf("Kind = %v, want CondAtom", cond.Kind)
	}
	if cond.Atom.Op != OpGt {
		t.Fatalf("Op = %v, want OpGt", cond.Atom.Op)
	}
	if cond.Atom.Left.Kind != OperandPath || cond.Atom.Left.Path.Namespace != NsEvent {
		t.Fatalf("Left = %+v, want an event-namespace path", cond.Atom.Left)
	}
	if cond.Atom.Right.Literal != 1000.0 {
		t.Fatalf("Right.Literal = %v, want 1000", cond.Atom.Right.Literal)
	}
}

func TestCompileConditionFeatureRefTracking(t *testing.T) {
	res, err := CompileCondition(`features.velocity_1h >= 5`, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FeatureRefs["velocity_1h"] {
		t.Fatalf("expected velocity_1h to be tracked as a feature ref, got %v", res.FeatureRefs)
	}
}

func TestCompileConditionListRefTracking(t *testing.T) {
	res, err := CompileCondition(`event.card_bin in list.known_bins`, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition.Atom.Op != OpIn {
		t.Fatalf("Op = %v, want OpIn", res.Condition.Atom.Op)
	}
	if !res.ListRefs["known_bins"] {
		t.Fatalf("expected known_bins to be tracked as a list ref, got %v", res.ListRefs)
	}
}

func TestCompileConditionAllAny(t *testing.T) {
	raw := map[string]any{
		"all": []any{
			`event.amount > 100`,
			map[string]any{
				"any": []any{
					`event.country == "US"`,
					`event.country == "CA"`,
				},
			},
		},
	}
	res, err := CompileCondition(raw, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition.Kind != CondAll {
		t.Fatalf("Kind = %v, want CondAll", res.Condition.Kind)
	}
	if len(res.Condition.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(res.Condition.Children))
	}
	if res.Condition.Children[1].Kind != CondAny {
		t.Fatalf("Children[1].Kind = %v, want CondAny", res.Condition.Children[1].Kind)
	}
}

func TestCompileConditionNot(t *testing.T) {
	raw := map[string]any{"not": `event.flagged == true`}
	res, err := CompileCondition(raw, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition.Kind != CondNot {
		t.Fatalf("Kind = %v, want CondNot", res.Condition.Kind)
	}
	if res.Condition.Child.Kind != CondAtom {
		t.Fatalf("Child.Kind = %v, want CondAtom", res.Condition.Child.Kind)
	}
}

func TestCompileConditionBareBoolRef(t *testing.T) {
	res, err := CompileCondition(`features.is_high_risk`, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition.Atom.Op != OpBoolRef {
		t.Fatalf("Op = %v, want OpBoolRef", res.Condition.Atom.Op)
	}
}

func TestCompileConditionMultiKeyBlockRejected(t *testing.T) {
	raw := map[string]any{"all": []any{}, "any": []any{}}
	if _, err := CompileCondition(raw, "rules.yaml:1"); err == nil {
		t.Fatalf("expected an error for a when-block with more than one structural key")
	}
}

func TestCompileConditionArrayLiteral(t *testing.T) {
	res, err := CompileCondition(`event.status in ["new", "pending"]`, "rules.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	right := res.Condition.Atom.Right
	if right.Kind != OperandArray || len(right.Array) != 2 {
		t.Fatalf("Right = %+v, want a 2-element array literal", right)
	}
}

func TestCompileConditionUnqualifiedIdentifierIsDBField(t *testing.T) {
	res, err := CompileCondition(`country == "US"`, "features.yaml:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Condition.Atom.Left.Kind != OperandDBField || res.Condition.Atom.Left.Field != "country" {
		t.Fatalf("Left = %+v, want an unqualified db_field \"country\"", res.Condition.Atom.Left)
	}
}
