// Package plot samples f around the bracket and draws the run as SVG.
package plot

import (
	"errors"
	"math"

	"falsepos/internal/optimizer"
)

const DefaultSamples = 400

var ErrNoFiniteSamples = errors.New("plot: function has no finite value on the domain")

// Sample is a point of the curve; Y is nil where f is undefined.
type Sample struct {
	X float64  `json:"x"`
	Y *float64 `json:"y"`
}

type Bracket struct {
	K  int     `json:"k"`
	XL float64 `json:"xl"`
	XU float64 `json:"xu"`
}

type Data struct {
	XMin      float64   `json:"xMin"`
	XMax      float64   `json:"xMax"`
	YMin      float64   `json:"yMin"`
	YMax      float64   `json:"yMax"`
	Curve     []Sample  `json:"curve"`
	Brackets  []Bracket `json:"brackets"`
	Estimates []float64 `json:"estimates"`
	Root      *float64  `json:"root"`
}

// Build samples f over the bracket padded by its width. iters may be empty.
func Build(f optimizer.Func, xl0, xu0 float64, iters []optimizer.Iter, samples int) (Data, error) {
	if samples < 2 {
		samples = DefaultSamples
	}
	w := math.Abs(xu0 - xl0)
	if w == 0 {
		w = 1
	}
	d := Data{
		XMin: math.Min(xl0, xu0) - w,
		XMax: math.Max(xl0, xu0) + w,
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	h := (d.XMax - d.XMin) / float64(samples-1)
	d.Curve = make([]Sample, samples)
	for i := range d.Curve {
		x := d.XMin + float64(i)*h
		d.Curve[i].X = x
		y, err := f.Eval(x)
		if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		d.Curve[i].Y = &y
		lo, hi = math.Min(lo, y), math.Max(hi, y)
	}
	if math.IsInf(lo, 1) {
		return Data{}, ErrNoFiniteSamples
	}

	margin := (hi - lo) * 0.2
	if margin == 0 {
		margin = 1
	}
	d.YMin, d.YMax = lo-margin, hi+margin

	d.Brackets = make([]Bracket, 0, len(iters))
	for _, it := range iters {
		d.Brackets = append(d.Brackets, Bracket{K: it.K, XL: it.XL, XU: it.XU})
	}
	d.Estimates = Estimates(iters)
	if n := len(iters); n > 0 {
		root := iters[n-1].XR
		d.Root = &root
	}
	return d, nil
}

func Estimates(iters []optimizer.Iter) []float64 {
	xs := make([]float64, len(iters))
	for i, it := range iters {
		xs[i] = it.XR
	}
	return xs
}
