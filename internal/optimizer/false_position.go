package optimizer

import (
	"fmt"
	"math"
)

// DefaultSafetyCap bounds every run, including runs with MaxIter == 0.
const DefaultSafetyCap = 10000

// Iter is one pass of the false-position method. XL and XU are the bounds
// that produced XR, i.e. the bracket before the update.
type Iter struct {
	K       int      `json:"k"`
	XL      float64  `json:"xl"`
	XU      float64  `json:"xu"`
	XR      float64  `json:"xr"`
	FXL     float64  `json:"fxl"`
	FXU     float64  `json:"fxu"`
	FXR     float64  `json:"fxr"`
	Product float64  `json:"product"`
	RelErr  *float64 `json:"relErr"` // percent, nil on the first pass
}

// Options control when a run stops.
type Options struct {
	// Tolerance is the approximate relative error, in percent, at or below
	// which the run is converged. 0.01 means 0.01 %.
	Tolerance float64
	// MaxIter caps the number of passes; 0 means no user cap.
	MaxIter int
	// SafetyCap is a hard cap applied regardless of MaxIter.
	// Values <= 0 select DefaultSafetyCap.
	SafetyCap int
}

func (o Options) Validate() error {
	if !(o.Tolerance > 0) || math.IsInf(o.Tolerance, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, o.Tolerance)
	}
	if o.MaxIter < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxIter, o.MaxIter)
	}
	return nil
}

func (o Options) safetyCap() int {
	if o.SafetyCap <= 0 {
		return DefaultSafetyCap
	}
	return o.SafetyCap
}

// Result of a run that converged or exhausted its iteration budget.
type Result struct {
	Root       float64  `json:"root"`
	XL         float64  `json:"xl"`
	XU         float64  `json:"xu"`
	RelErr     *float64 `json:"relErr"`
	Iterations int      `json:"iterations"`
	State      State    `json:"state"`
	Reason     Reason   `json:"reason"`
	Iters      []Iter   `json:"iters"`
}

// FalsePosition finds a root of f inside the bracket [xl, xu] with the
// regula falsi method.
//
// onIter is called after every pass; a non-nil error aborts the run and is
// returned as is (use ErrStopped to cancel). On any error no Result is
// produced.
func FalsePosition(f Func, xl, xu float64, opts Options, onIter func(Iter) error) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	fl, fu, err := CheckBracket(f, xl, xu)
	if err != nil {
		return Result{}, err
	}
	state := StateIterating

	var (
		reason   Reason
		iters    []Iter
		xr, prev float64
		havePrev bool
		relErr   *float64
		limit    = opts.safetyCap()
	)

	for k := 1; state == StateIterating; k++ {
		xr, err = secantRoot(xl, xu, fl, fu)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", k, err)
		}
		fr, err := evalFinite(f, xr)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", k, err)
		}

		relErr = nil
		zeroEstimate := false
		if havePrev {
			switch {
			case xr != 0:
				e := math.Abs(xr-prev) / math.Abs(xr) * 100
				relErr = &e
			case prev == 0:
				e := 0.0
				relErr = &e
			default:
				zeroEstimate = true
			}
		}

		it := Iter{
			K: k, XL: xl, XU: xu, XR: xr,
			FXL: fl, FXU: fu, FXR: fr,
			Product: fl * fr,
			RelErr:  relErr,
		}
		iters = append(iters, it)
		if onIter != nil {
			if err := onIter(it); err != nil {
				return Result{}, err
			}
		}

		var ev event
		if fr == 0 {
			xl, xu, fl, fu = xr, xr, 0, 0
			ev = evExactRoot
		} else {
			if opposite(fl, fr) {
				xu, fu = xr, fr
			} else {
				xl, fl = xr, fr
			}
			switch {
			case zeroEstimate:
				ev = evZeroEstimate
			case relErr != nil && *relErr <= opts.Tolerance:
				ev = evToleranceMet
			case opts.MaxIter > 0 && k >= opts.MaxIter:
				ev = evMaxIterations
			case k >= limit:
				ev = evSafetyCap
			default:
				ev = evContinue
			}
		}
		state, reason = step(state, ev)
		prev, havePrev = xr, true
	}

	return Result{
		Root:       xr,
		XL:         xl,
		XU:         xu,
		RelErr:     relErr,
		Iterations: len(iters),
		State:      state,
		Reason:     reason,
		Iters:      iters,
	}, nil
}

// CheckBracket evaluates f at both bounds and fails with ErrUnbracketed
// unless the values have strictly opposite signs.
func CheckBracket(f Func, xl, xu float64) (fl, fu float64, err error) {
	if !finite(xl) || !finite(xu) {
		return 0, 0, fmt.Errorf("%w: bracket [%g, %g]", ErrNonFinite, xl, xu)
	}
	if fl, err = evalFinite(f, xl); err != nil {
		return 0, 0, err
	}
	if fu, err = evalFinite(f, xu); err != nil {
		return 0, 0, err
	}
	if !opposite(fl, fu) {
		return 0, 0, fmt.Errorf("%w: f(%g) = %g, f(%g) = %g", ErrUnbracketed, xl, fl, xu, fu)
	}
	return fl, fu, nil
}

// secantRoot is the x-intercept of the line through (xl, fl) and (xu, fu),
// kept inside [min(xl,xu), max(xl,xu)] against rounding.
func secantRoot(xl, xu, fl, fu float64) (float64, error) {
	if fl == fu {
		return math.NaN(), ErrDegenerateInterval
	}
	xr := xu - fu*(xl-xu)/(fl-fu)
	if !finite(xr) {
		return math.NaN(), fmt.Errorf("%w: estimate %g", ErrNonFinite, xr)
	}
	lo, hi := math.Min(xl, xu), math.Max(xl, xu)
	return math.Max(lo, math.Min(hi, xr)), nil
}

func evalFinite(f Func, x float64) (float64, error) {
	y, err := f.Eval(x)
	if err != nil {
		return math.NaN(), fmt.Errorf("f(%g): %w", x, err)
	}
	if !finite(y) {
		return math.NaN(), fmt.Errorf("%w: f(%g) = %g", ErrNonFinite, x, y)
	}
	return y, nil
}

// opposite reports whether a and b are non-zero with different signs.
// Comparing signs avoids the underflow of a*b for tiny values.
func opposite(a, b float64) bool {
	return a != 0 && b != 0 && (a < 0) != (b < 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
