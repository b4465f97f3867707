package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"falsepos/internal/config"
	"falsepos/internal/optimizer"
	"falsepos/internal/plot"
	"falsepos/internal/report"
	"falsepos/internal/store"
)

type solveFlags struct {
	expr      string
	xl, xu    float64
	tol       float64
	maxIter   int
	safetyCap int
	precision int
	csvPath   string
	svgPath   string
	dbPath    string
}

func newSolveCmd(g *globalFlags) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Find one root; prompts for the inputs when --func is not given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			applySolveDefaults(cmd, f, cfg)
			if f.expr == "" {
				if err := promptSolve(cmd.InOrStdin(), cmd.OutOrStdout(), f); err != nil {
					return err
				}
			}
			return runSolve(cmd.OutOrStdout(), f, cfg)
		},
	}
	cmd.Flags().StringVarP(&f.expr, "func", "f", "", "Function of x, e.g. \"x^3 - 4*x + 1\"")
	cmd.Flags().Float64Var(&f.xl, "xl", 0, "Lower bound")
	cmd.Flags().Float64Var(&f.xu, "xu", 0, "Upper bound")
	cmd.Flags().Float64VarP(&f.tol, "tol", "t", 0, "Approximate relative error in percent (default from config)")
	cmd.Flags().IntVarP(&f.maxIter, "max-iter", "n", 0, "Maximum iterations, 0 = until convergence (default from config)")
	cmd.Flags().IntVar(&f.safetyCap, "safety-cap", 0, "Hard iteration cap (default from config)")
	cmd.Flags().IntVarP(&f.precision, "precision", "p", 0, "Digits shown in the table (default from config)")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "Write the iterations to this CSV file")
	cmd.Flags().StringVar(&f.svgPath, "svg", "", "Write the plot to this SVG file")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "Save the run to this SQLite database")
	return cmd
}

func applySolveDefaults(cmd *cobra.Command, f *solveFlags, cfg *config.Config) {
	if !cmd.Flags().Changed("tol") {
		f.tol = cfg.Solver.Tolerance
	}
	if !cmd.Flags().Changed("max-iter") {
		f.maxIter = cfg.Solver.MaxIter
	}
	if !cmd.Flags().Changed("safety-cap") {
		f.safetyCap = cfg.Solver.SafetyCap
	}
	if !cmd.Flags().Changed("precision") {
		f.precision = cfg.Output.Precision
	}
}

func promptSolve(in io.Reader, out io.Writer, f *solveFlags) error {
	fmt.Fprintln(out, "False Position Method Calculator")
	fmt.Fprintln(out, strings.Repeat("=", 55))

	p := newPrompter(in, out)
	var err error
	if f.expr, err = p.String("Enter the function in terms of x (example: x^3 - 4*x + 1): "); err != nil {
		return err
	}
	if f.xl, err = p.Float("Enter the lower bound (xl): "); err != nil {
		return err
	}
	if f.xu, err = p.Float("Enter the upper bound (xu): "); err != nil {
		return err
	}
	if f.tol, err = p.Float("Enter acceptable error % (example: 0.01 for 0.01%): "); err != nil {
		return err
	}
	if f.maxIter, err = p.Int("Enter maximum number of iterations (0 = until convergence): "); err != nil {
		return err
	}
	return nil
}

func runSolve(out io.Writer, f *solveFlags, cfg *config.Config) error {
	fn, err := optimizer.NewEvalFunc(f.expr)
	if err != nil {
		return fmt.Errorf("bad function expression: %w", err)
	}

	opts := optimizer.Options{Tolerance: f.tol, MaxIter: f.maxIter, SafetyCap: f.safetyCap}
	var trace []optimizer.Iter
	res, runErr := optimizer.FalsePosition(fn, f.xl, f.xu, opts, func(it optimizer.Iter) error {
		trace = append(trace, it)
		return nil
	})

	if f.dbPath != "" {
		if err := saveSolve(f, res, trace, runErr); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	ropts := report.Options{Precision: f.precision, Color: cfg.Output.Color}
	fmt.Fprintln(out)
	if err := report.WriteTable(out, res.Iters, ropts); err != nil {
		return err
	}
	if err := report.WriteSummary(out, res, ropts); err != nil {
		return err
	}

	if f.csvPath != "" {
		if err := writeFile(f.csvPath, func(w io.Writer) error { return report.WriteCSV(w, res.Iters) }); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Fprintf(out, "Iterations written to %s\n", f.csvPath)
	}
	if f.svgPath != "" {
		d, err := plot.Build(fn, f.xl, f.xu, res.Iters, plot.DefaultSamples)
		if err != nil {
			return err
		}
		title := "False Position Method: f(x) = " + f.expr
		if err := writeFile(f.svgPath, func(w io.Writer) error { return plot.WriteSVG(w, d, title) }); err != nil {
			return fmt.Errorf("write svg: %w", err)
		}
		fmt.Fprintf(out, "Plot written to %s\n", f.svgPath)
	}
	return nil
}

// saveSolve keeps the records produced before a failure.
func saveSolve(f *solveFlags, res optimizer.Result, trace []optimizer.Iter, runErr error) error {
	st, err := store.NewStore(f.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run := store.Run{Expr: f.expr, XL: f.xl, XU: f.xu, Tolerance: f.tol, MaxIter: f.maxIter, Result: res}
	if runErr != nil {
		state, reason := optimizer.Classify(runErr)
		run.Err = runErr.Error()
		run.Result = optimizer.Result{State: state, Reason: reason, Iters: trace, Iterations: len(trace)}
	}
	if _, err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
