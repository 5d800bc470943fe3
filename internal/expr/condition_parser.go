package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/corintai/corint/internal/corinterr"
)

type atomParser struct {
	toks     []token
	pos      int
	location string
}

func parseAtom(raw, location string) (*Atom, error) {
	toks, err := lexAtom(raw, location)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, corinterr.Compile(corinterr.KindInvalidExpression, location, "empty condition atom", nil)
	}
	p := &atomParser{toks: toks, location: location}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.pos >= len(p.toks) {
		return &Atom{Op: OpBoolRef, Left: left}, nil
	}

	tok := p.toks[p.pos]
	switch tok.kind {
	case tokOp:
		p.pos++
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if err := p.expectEnd(); err != nil {
			return nil, err
		}
		return &Atom{Op: AtomOp(tok.text), Left: left, Right: right}, nil
	case tokKeyword:
		switch tok.text {
		case "in":
			p.pos++
			right, err := p.parseMembershipOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpIn, Left: left, Right: right}, nil
		case "not":
			p.pos++
			if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokKeyword || p.toks[p.pos].text != "in" {
				return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
					`expected "in" after "not"`, nil)
			}
			p.pos++
			right, err := p.parseMembershipOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpNotIn, Left: left, Right: right}, nil
		case "contains":
			p.pos++
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpContains, Left: left, Right: right}, nil
		case "starts_with":
			p.pos++
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpStartsWith, Left: left, Right: right}, nil
		case "ends_with":
			p.pos++
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpEndsWith, Left: left, Right: right}, nil
		case "regex":
			p.pos++
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return &Atom{Op: OpRegex, Left: left, Right: right}, nil
		}
	}
	return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
		fmt.Sprintf("unexpected token %q in condition atom", tok.text), nil)
}

func (p *atomParser) expectEnd() error {
	if p.pos != len(p.toks) {
		return corinterr.Compile(corinterr.KindInvalidExpression, p.location,
			"trailing tokens after condition atom", nil)
	}
	return nil
}

func (p *atomParser) parseOperand() (Operand, error) {
	if p.pos >= len(p.toks) {
		return Operand{}, corinterr.Compile(corinterr.KindInvalidExpression, p.location,
			"expected operand", nil)
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokString:
		p.pos++
		return Operand{Kind: OperandLiteral, Literal: tok.text}, nil
	case tokNumber:
		p.pos++
		f, _ := strconv.ParseFloat(tok.text, 64)
		return Operand{Kind: OperandLiteral, Literal: f}, nil
	case tokBool:
		p.pos++
		return Operand{Kind: OperandLiteral, Literal: tok.text == "true"}, nil
	case tokNull:
		p.pos++
		return Operand{Kind: OperandLiteral, Literal: nil}, nil
	case tokIdent:
		p.pos++
		if strings.HasPrefix(tok.text, "list.") {
			return Operand{Kind: OperandListRef, ListID: strings.TrimPrefix(tok.text, "list.")}, nil
		}
		if path, ok := ParsePath(tok.text); ok {
			return Operand{Kind: OperandPath, Path: path}, nil
		}
		// Unqualified identifier: a database-row field reference, used only
		// in feature `when` filters evaluated against datasource rows.
		return Operand{Kind: OperandDBField, Field: tok.text}, nil
	case tokLBracket:
		return p.parseArray()
	}
	return Operand{}, corinterr.Compile(corinterr.KindInvalidExpression, p.location,
		fmt.Sprintf("unexpected token %q, expected operand", tok.text), nil)
}

// parseMembershipOperand allows a list reference, inline array, or any
// ordinary operand (for membership against a dynamic context array).
func (p *atomParser) parseMembershipOperand() (Operand, error) {
	return p.parseOperand()
}

func (p *atomParser) parseArray() (Operand, error) {
	// consumes '[' literal (',' literal)* ']'
	p.pos++ // consume '['
	var items []any
	for {
		if p.pos >= len(p.toks) {
			return Operand{}, corinterr.Compile(corinterr.KindInvalidExpression, p.location,
				"unterminated array literal", nil)
		}
		if p.toks[p.pos].kind == tokRBracket {
			p.pos++
			break
		}
		operand, err := p.parseOperand()
		if err != nil {
			return Operand{}, err
		}
		if operand.Kind != OperandLiteral {
			return Operand{}, corinterr.Compile(corinterr.KindInvalidExpression, p.location,
				"array literal elements must be literals", nil)
		}
		items = append(items, operand.Literal)
		if p.pos < len(p.toks) && p.toks[p.pos].kind == tokComma {
			p.pos++
			continue
		}
	}
	return Operand{Kind: OperandArray, Array: items}, nil
}
