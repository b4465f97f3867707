// Package report prints iteration records as a table, a summary or CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"falsepos/internal/optimizer"
)

// ANSI colors
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

type Options struct {
	Precision int  // digits after the point, 4 when zero
	Color     bool // emit ANSI colors
}

func (o Options) prec() int {
	if o.Precision <= 0 {
		return 4
	}
	return o.Precision
}

func (o Options) paint(color, s string) string {
	if !o.Color {
		return s
	}
	return color + s + Reset
}

var header = []string{"Iter", "xl", "xu", "xr", "f(xl)", "f(xu)", "f(xr)", "f(xl)*f(xr)", "Error (%)"}

// WriteTable prints the iteration table.
func WriteTable(w io.Writer, iters []optimizer.Iter, opts Options) error {
	p := opts.prec()
	width := p + 8

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s", header[0])
	for _, h := range header[1:] {
		fmt.Fprintf(&b, " %*s", width, h)
	}
	line := b.String()
	if _, err := fmt.Fprintln(w, opts.paint(Bold, line)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", len(line))); err != nil {
		return err
	}

	for _, it := range iters {
		b.Reset()
		fmt.Fprintf(&b, "%-6d", it.K)
		for _, v := range []float64{it.XL, it.XU, it.XR, it.FXL, it.FXU, it.FXR, it.Product} {
			fmt.Fprintf(&b, " %*.*f", width, p, v)
		}
		fmt.Fprintf(&b, " %*s", width, FormatErr(it.RelErr, p))
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func WriteSummary(w io.Writer, res optimizer.Result, opts Options) error {
	p := opts.prec()
	color := Green
	if res.State != optimizer.StateConverged {
		color = Yellow
	}
	_, err := fmt.Fprintf(w, "\n%s\n"+
		"Approximate Root  : %.*f\n"+
		"Approx. Error     : %s\n"+
		"Final Interval    : [%.*f, %.*f]\n"+
		"Iterations        : %d\n"+
		"Stopped           : %s\n",
		opts.paint(Bold, "Final Result"),
		p, res.Root,
		FormatErr(res.RelErr, 2),
		p, res.XL, p, res.XU,
		res.Iterations,
		opts.paint(color, stopText(res)),
	)
	return err
}

func stopText(res optimizer.Result) string {
	if res.Reason == optimizer.ReasonNone {
		return res.State.String()
	}
	return res.State.String() + " (" + strings.ReplaceAll(string(res.Reason), "_", " ") + ")"
}

// FormatErr formats a relative error in percent, "-" when undefined.
func FormatErr(e *float64, prec int) string {
	if e == nil {
		return "-"
	}
	return strconv.FormatFloat(*e, 'f', prec, 64) + "%"
}

func WriteError(w io.Writer, err error, opts Options) {
	fmt.Fprintf(w, "\n%s %v\n", opts.paint(Red, "ERROR:"), err)
}

// WriteCSV writes records at full precision.
func WriteCSV(w io.Writer, iters []optimizer.Iter) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"k", "xl", "xu", "xr", "f(xl)", "f(xu)", "f(xr)", "f(xl)*f(xr)", "relErr"}); err != nil {
		return err
	}
	for _, it := range iters {
		relErr := ""
		if it.RelErr != nil {
			relErr = fmtFloat(*it.RelErr)
		}
		if err := cw.Write([]string{
			strconv.Itoa(it.K),
			fmtFloat(it.XL),
			fmtFloat(it.XU),
			fmtFloat(it.XR),
			fmtFloat(it.FXL),
			fmtFloat(it.FXU),
			fmtFloat(it.FXR),
			fmtFloat(it.Product),
			relErr,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}
