package optimizer

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestEvalFunc(t *testing.T) {
	cases := []struct {
		expr string
		x    float64
		want float64
	}{
		{"x^3 - 4*x + 1", 2, 1},
		{"x**3 - 4*x + 1", 0, 1},
		{"2*pi", 0, 2 * math.Pi},
		{"e", 0, math.E},
		{"exp(x) - e", 1, 0},
		{"sin(pi/2) + cos(0)", 0, 2},
		{"pow(x, 2) + sqrt(16)", 3, 13},
		{"ln(e) + log10(100) + log2(8)", 0, 6},
		{"abs(-x)", 4, 4},
		{"1 - x^2", 3, -8},
		{"(x - 1) * (x + 1)", 5, 24},
		{"-x^2", 3, -9},
		{"-x**2 + 4", 3, -5},
		{"-2^2", 0, -4},
		{"(-2)^2", 0, 4},
		{"-(x + 1)^2", 1, -4},
		{"2^3^2", 0, 512},
		{"x^-1", 4, 0.25},
		{"x**-1", 4, 0.25},
		{"x^2^-1", 4, 2},
		{"2*-x", 3, -6},
		{"pow(-x, 2)", 3, 9},
		{"10 - 2 - 3", 0, 5},
		{"2/4/2", 0, 0.25},
		{"8 % 3", 0, 2},
	}
	for _, tc := range cases {
		f, err := NewEvalFunc(tc.expr)
		if err != nil {
			t.Fatalf("%q: %v", tc.expr, err)
		}
		got, err := f.Eval(tc.x)
		if err != nil {
			t.Fatalf("%q: eval: %v", tc.expr, err)
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%q at %v: got %v want %v", tc.expr, tc.x, got, tc.want)
		}
	}
}

func TestEvalFuncRejects(t *testing.T) {
	cases := []struct {
		expr string
		want error
	}{
		{"", ErrEmptyExpression},
		{"   ", ErrEmptyExpression},
		{"x + y", ErrUnknownVariable},
		{"os + x", ErrUnknownVariable},
		{"x > 1", ErrUnsupportedOperator},
		{"x == 1 ? 1 : 2", ErrUnsupportedOperator},
		{"x & 1", ErrUnsupportedOperator},
		{"'abc'", ErrUnsupportedOperator},
		{"-x > 1", ErrUnsupportedOperator},
	}
	for _, tc := range cases {
		_, err := NewEvalFunc(tc.expr)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.expr, tc.want, err)
		}
	}
}

func TestEvalFuncBadArity(t *testing.T) {
	f, err := NewEvalFunc("pow(x)")
	if err != nil {
		t.Fatalf("NewEvalFunc: %v", err)
	}
	if _, err := f.Eval(1); err == nil {
		t.Fatal("expected an arity error")
	}
}

func TestEvalFuncIdempotent(t *testing.T) {
	f, err := NewEvalFunc("exp(-x) - x")
	if err != nil {
		t.Fatalf("NewEvalFunc: %v", err)
	}
	a, _ := f.Eval(0.3)
	b, _ := f.Eval(0.3)
	if a != b {
		t.Fatalf("same input gave %v and %v", a, b)
	}
}

func TestEvalFuncConcurrent(t *testing.T) {
	f, err := NewEvalFunc("x^2")
	if err != nil {
		t.Fatalf("NewEvalFunc: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(x float64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				y, err := f.Eval(x)
				if err != nil || y != x*x {
					errs <- errors.New("wrong value under concurrency")
					return
				}
			}
		}(float64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestFalsePositionWithExpression(t *testing.T) {
	f, err := NewEvalFunc("x^3 - 4*x + 1")
	if err != nil {
		t.Fatalf("NewEvalFunc: %v", err)
	}
	res, err := FalsePosition(f, 0, 1, Options{Tolerance: 0.01, MaxIter: 50}, nil)
	if err != nil {
		t.Fatalf("FalsePosition: %v", err)
	}
	if math.Abs(res.Root-0.2541) > 1e-3 {
		t.Fatalf("root %v", res.Root)
	}
}

func TestFalsePositionNegatedPower(t *testing.T) {
	f, err := NewEvalFunc("-x^2 + 4")
	if err != nil {
		t.Fatalf("NewEvalFunc: %v", err)
	}
	res, err := FalsePosition(f, 0, 3, Options{Tolerance: 0.001, MaxIter: 200}, nil)
	if err != nil {
		t.Fatalf("FalsePosition: %v", err)
	}
	if res.State != StateConverged || math.Abs(res.Root-2) > 1e-3 {
		t.Fatalf("got root %v state %v, want 2 converged", res.Root, res.State)
	}
}

func TestEvalFuncParseErrors(t *testing.T) {
	for _, expr := range []string{"sin(x", "x +", "x ^", "2 3"} {
		if _, err := NewEvalFunc(expr); err == nil {
			t.Fatalf("%q: expected a parse error", expr)
		}
	}
}
