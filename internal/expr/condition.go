package expr

import (
	"fmt"

	"github.com/corintai/corint/internal/corinterr"
)

// ConditionKind discriminates the boolean-tree node variants (spec §4.3).
type ConditionKind string

const (
	CondAll  ConditionKind = "all"
	CondAny  ConditionKind = "any"
	CondNot  ConditionKind = "not"
	CondAtom ConditionKind = "atom"
)

// Condition is a node of the condition-dialect boolean tree.
type Condition struct {
	Kind     ConditionKind
	Children []*Condition // All | Any
	Child    *Condition   // Not
	Atom     *Atom        // Atom
}

// AtomOp enumerates the operators an Atom may carry.
type AtomOp string

const (
	OpEq           AtomOp = "=="
	OpNeq          AtomOp = "!="
	OpLt           AtomOp = "<"
	OpGt           AtomOp = ">"
	OpLte          AtomOp = "<="
	OpGte          AtomOp = ">="
	OpIn           AtomOp = "in"
	OpNotIn        AtomOp = "not in"
	OpContains     AtomOp = "contains"
	OpStartsWith   AtomOp = "starts_with"
	OpEndsWith     AtomOp = "ends_with"
	OpRegex        AtomOp = "regex"
	OpBoolRef      AtomOp = "bool_ref"
)

// OperandKind distinguishes the five operand shapes.
type OperandKind string

const (
	OperandLiteral  OperandKind = "literal"
	OperandPath     OperandKind = "path"
	OperandDBField  OperandKind = "db_field"
	OperandArray    OperandKind = "array"
	OperandListRef  OperandKind = "list_ref"
)

// Operand is either a literal value, a namespace Path, a bare DatabaseField
// reference (feature `when` over an unqualified row column), an inline
// array literal (`in [1,2,3]`), or a named List reference (`in list.<id>`).
type Operand struct {
	Kind    OperandKind
	Literal any
	Path    Path
	Field   string
	Array   []any
	ListID  string
}

// Atom is one leaf comparison/membership/string-op/bool-ref of the
// condition dialect.
type Atom struct {
	Op    AtomOp
	Left  Operand
	Right Operand // unused for OpBoolRef
}

// CompileResult carries the compiled condition plus the set of feature IDs
// it references (for lazy-evaluation dependency tracking, spec §4.9/§2).
type CompileResult struct {
	Condition     *Condition
	FeatureRefs   map[string]bool
	ListRefs      map[string]bool
}

// CompileCondition compiles a raw YAML `when:` value (string | map with a
// single all/any/not key | nil) into a typed Condition tree.
func CompileCondition(raw any, location string) (*CompileResult, error) {
	res := &CompileResult{FeatureRefs: map[string]bool{}, ListRefs: map[string]bool{}}
	if raw == nil {
		return res, nil
	}
	cond, err := compileNode(raw, location, res)
	if err != nil {
		return nil, err
	}
	res.Condition = cond
	return res, nil
}

func compileNode(raw any, location string, res *CompileResult) (*Condition, error) {
	switch t := raw.(type) {
	case string:
		atom, err := parseAtom(t, location)
		if err != nil {
			return nil, err
		}
		collectRefs(atom, res)
		return &Condition{Kind: CondAtom, Atom: atom}, nil
	case map[string]any:
		if len(t) != 1 {
			return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
				"a structural when-block must have exactly one of all/any/not", nil)
		}
		for key, val := range t {
			switch key {
			case "all", "any":
				list, ok := val.([]any)
				if !ok {
					return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
						fmt.Sprintf("%q must be a list", key), nil)
				}
				children := make([]*Condition, 0, len(list))
				for _, item := range list {
					child, err := compileNode(item, location, res)
					if err != nil {
						return nil, err
					}
					children = append(children, child)
				}
				kind := CondAll
				if key == "any" {
					kind = CondAny
				}
				return &Condition{Kind: kind, Children: children}, nil
			case "not":
				child, err := compileNode(val, location, res)
				if err != nil {
					return nil, err
				}
				return &Condition{Kind: CondNot, Child: child}, nil
			default:
				return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
					fmt.Sprintf("unknown structural when-block key %q", key), nil)
			}
		}
	}
	return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
		fmt.Sprintf("unsupported when-block shape %T", raw), nil)
}

func collectRefs(atom *Atom, res *CompileResult) {
	collectOperandRefs(atom.Left, res)
	collectOperandRefs(atom.Right, res)
}

func collectOperandRefs(op Operand, res *CompileResult) {
	switch op.Kind {
	case OperandPath:
		if op.Path.Namespace == NsFeatures && len(op.Path.Segments) > 0 {
			res.FeatureRefs[op.Path.Segments[0]] = true
		}
	case OperandListRef:
		res.ListRefs[op.ListID] = true
	}
}
