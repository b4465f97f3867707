package optimizer

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// spacing lets a sign follow an operator: govaluate lexes "**-" or "*-" as one symbol.
var spacing = strings.NewReplacer(
	"^", " ** ",
	"*", " * ",
	"/", " / ",
	"%", " % ",
	"+", " + ",
	"-", " - ",
)

func normalize(src string) string {
	return spacing.Replace(strings.ReplaceAll(src, "**", "^"))
}

var (
	openTok  = govaluate.ExpressionToken{Kind: govaluate.CLAUSE, Value: '('}
	closeTok = govaluate.ExpressionToken{Kind: govaluate.CLAUSE_CLOSE, Value: ')'}
)

// regroup rewrites govaluate's tokens fully parenthesised with the usual
// precedence: unary minus binds looser than ^, and ^ groups right to left.
//
//	expr  = term {("+" | "-") term}
//	term  = unary {("*" | "/" | "%") unary}
//	unary = "-" unary | power
//	power = atom ["**" unary]
//	atom  = number | name | func "(" [expr {"," expr}] ")" | "(" expr ")"
func regroup(toks []govaluate.ExpressionToken) ([]govaluate.ExpressionToken, error) {
	p := &grouper{toks: toks}
	out, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %v", p.toks[p.pos].Value)
	}
	return out, nil
}

type grouper struct {
	toks []govaluate.ExpressionToken
	pos  int
}

func (p *grouper) peekKind(kind govaluate.TokenKind) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].Kind == kind
}

func (p *grouper) peekOp(kind govaluate.TokenKind, symbols ...string) bool {
	if !p.peekKind(kind) {
		return false
	}
	s, _ := p.toks[p.pos].Value.(string)
	for _, sym := range symbols {
		if s == sym {
			return true
		}
	}
	return false
}

func (p *grouper) next() govaluate.ExpressionToken {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *grouper) binary(operand func() ([]govaluate.ExpressionToken, error), symbols ...string) ([]govaluate.ExpressionToken, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.peekOp(govaluate.MODIFIER, symbols...) {
		op := p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = group(left, op, right)
	}
	return left, nil
}

func (p *grouper) expr() ([]govaluate.ExpressionToken, error) {
	return p.binary(p.term, "+", "-")
}

func (p *grouper) term() ([]govaluate.ExpressionToken, error) {
	return p.binary(p.unary, "*", "/", "%")
}

func (p *grouper) unary() ([]govaluate.ExpressionToken, error) {
	if !p.peekOp(govaluate.PREFIX, "-") {
		return p.power()
	}
	neg := p.next()
	operand, err := p.unary()
	if err != nil {
		return nil, err
	}
	out := []govaluate.ExpressionToken{openTok, neg, openTok}
	out = append(out, operand...)
	return append(out, closeTok, closeTok), nil
}

func (p *grouper) power() ([]govaluate.ExpressionToken, error) {
	base, err := p.atom()
	if err != nil {
		return nil, err
	}
	if !p.peekOp(govaluate.MODIFIER, "**") {
		return base, nil
	}
	op := p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return group(base, op, exp), nil
}

func (p *grouper) atom() ([]govaluate.ExpressionToken, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.next()
	switch t.Kind {
	case govaluate.NUMERIC, govaluate.VARIABLE:
		return []govaluate.ExpressionToken{t}, nil
	case govaluate.CLAUSE:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.closing(); err != nil {
			return nil, err
		}
		out := append([]govaluate.ExpressionToken{openTok}, inner...)
		return append(out, closeTok), nil
	case govaluate.FUNCTION:
		if !p.peekKind(govaluate.CLAUSE) {
			return nil, fmt.Errorf("function call without arguments")
		}
		out := []govaluate.ExpressionToken{t, p.next()}
		for !p.peekKind(govaluate.CLAUSE_CLOSE) {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			out = append(out, arg...)
			if !p.peekKind(govaluate.SEPARATOR) {
				break
			}
			out = append(out, p.next())
		}
		if err := p.closing(); err != nil {
			return nil, err
		}
		return append(out, closeTok), nil
	}
	return nil, fmt.Errorf("unexpected %v", t.Value)
}

func (p *grouper) closing() error {
	if !p.peekKind(govaluate.CLAUSE_CLOSE) {
		return fmt.Errorf("missing )")
	}
	p.pos++
	return nil
}

func group(left []govaluate.ExpressionToken, op govaluate.ExpressionToken, right []govaluate.ExpressionToken) []govaluate.ExpressionToken {
	out := make([]govaluate.ExpressionToken, 0, len(left)+len(right)+3)
	out = append(out, openTok)
	out = append(out, left...)
	out = append(out, op)
	out = append(out, right...)
	return append(out, closeTok)
}
