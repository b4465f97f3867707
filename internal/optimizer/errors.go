package optimizer

import "errors"

// Errors returned by the root finder. Callers match them with errors.Is.
var (
	// ErrStopped is returned when the iteration callback asks to stop.
	ErrStopped = errors.New("falsepos: stopped by callback")

	// ErrUnbracketed: f(xl) and f(xu) do not have strictly opposite signs.
	// No iteration is run.
	ErrUnbracketed = errors.New("falsepos: f(xl) and f(xu) must have opposite signs")

	// ErrDegenerateInterval: f(xl) == f(xu), the secant line is horizontal.
	ErrDegenerateInterval = errors.New("falsepos: degenerate interval, f(xl) == f(xu)")

	// ErrNonFinite: a bound, an estimate or a function value is NaN or ±Inf.
	ErrNonFinite = errors.New("falsepos: non-finite value")

	ErrInvalidTolerance = errors.New("falsepos: tolerance must be a finite positive percentage")
	ErrInvalidMaxIter   = errors.New("falsepos: max iterations must be >= 0")
)

// Expression errors.
var (
	ErrEmptyExpression     = errors.New("falsepos: empty expression")
	ErrUnknownVariable     = errors.New("falsepos: unknown variable")
	ErrUnsupportedOperator = errors.New("falsepos: unsupported operator")
	ErrBadArity            = errors.New("falsepos: wrong number of arguments")
	ErrNotNumber           = errors.New("falsepos: expression did not evaluate to a number")
)
