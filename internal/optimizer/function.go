package optimizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
)

// Func is a real function of one variable.
type Func interface {
	Eval(x float64) (float64, error)
}

// FuncOf adapts a plain Go function to Func.
type FuncOf func(x float64) float64

func (f FuncOf) Eval(x float64) (float64, error) { return f(x), nil }

// evalFunc is a Func backed by a parsed govaluate expression.
type evalFunc struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// constants visible to every expression besides x
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// operators govaluate accepts that make no sense for a real function
var rejectedOps = map[string]bool{
	"&": true, "|": true, "<<": true, ">>": true, "!": true, "~": true,
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected 1 argument, got %d", ErrBadArity, len(args))
		}
		v, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(v), nil
	}
}

func functions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		"sin":   unary(math.Sin),
		"cos":   unary(math.Cos),
		"tan":   unary(math.Tan),
		"asin":  unary(math.Asin),
		"acos":  unary(math.Acos),
		"atan":  unary(math.Atan),
		"sinh":  unary(math.Sinh),
		"cosh":  unary(math.Cosh),
		"tanh":  unary(math.Tanh),
		"exp":   unary(math.Exp),
		"log":   unary(math.Log),
		"ln":    unary(math.Log),
		"log10": unary(math.Log10),
		"log2":  unary(math.Log2),
		"sqrt":  unary(math.Sqrt),
		"abs":   unary(math.Abs),
		"pow": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("%w: pow expects 2 arguments, got %d", ErrBadArity, len(args))
			}
			b, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			p, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			return math.Pow(b, p), nil
		},
	}
}

// NewEvalFunc parses expr (in x) into a Func.
//
// Only arithmetic, exponentiation (^ or **), the constants pi and e and the
// elementary functions registered above are accepted; anything else is a
// parse error. -x^2 is -(x^2) and 2^3^2 is 2^(3^2). The returned Func holds
// no mutable state and is safe for concurrent use.
func NewEvalFunc(expr string) (Func, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, ErrEmptyExpression
	}
	// govaluate reads ^ as bitwise xor
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(normalize(src), functions())
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}

	for _, tok := range parsed.Tokens() {
		switch tok.Kind {
		case govaluate.NUMERIC, govaluate.FUNCTION, govaluate.SEPARATOR,
			govaluate.CLAUSE, govaluate.CLAUSE_CLOSE:
		case govaluate.VARIABLE:
			name, _ := tok.Value.(string)
			if _, ok := constants[name]; !ok && name != "x" {
				return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
			}
		case govaluate.PREFIX, govaluate.MODIFIER:
			if op, _ := tok.Value.(string); rejectedOps[op] {
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
			}
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedOperator, tok.Value)
		}
	}

	grouped, err := regroup(parsed.Tokens())
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if parsed, err = govaluate.NewEvaluableExpressionFromTokens(grouped); err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return &evalFunc{src: src, expr: parsed}, nil
}

func (f *evalFunc) Eval(x float64) (float64, error) {
	params := make(map[string]interface{}, len(constants)+1)
	for k, v := range constants {
		params[k] = v
	}
	params["x"] = x

	v, err := f.expr.Evaluate(params)
	if err != nil {
		return math.NaN(), err
	}
	return toFloat(v)
}

func (f *evalFunc) String() string { return f.src }

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return math.NaN(), fmt.Errorf("%w: %T", ErrNotNumber, v)
	}
}
