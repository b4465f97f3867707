package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"falsepos/internal/batch"
	"falsepos/internal/report"
)

func newBatchCmd(g *globalFlags) *cobra.Command {
	var (
		workers  int
		jsonOut  bool
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Solve every problem of a JSON file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			problems, err := batch.LoadProblems(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Batch.Workers
			}
			if !cmd.Flags().Changed("progress") {
				progress = cfg.Batch.Progress
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := batch.Options{
				Workers:   workers,
				SafetyCap: cfg.Solver.SafetyCap,
				Tolerance: cfg.Solver.Tolerance,
				MaxIter:   cfg.Solver.MaxIter,
			}
			if progress && !jsonOut {
				opts.Progress = cmd.ErrOrStderr()
			}
			outcomes := batch.Run(ctx, problems, opts)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(outcomes)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nNAME\tFUNCTION\tROOT\tERROR (%)\tITER\tSTOPPED")
			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%s\n", o.Problem.Name, o.Problem.Func, o.Err)
					continue
				}
				r := o.Result
				fmt.Fprintf(tw, "%s\t%s\t%.*f\t%s\t%d\t%s (%s)\n",
					o.Problem.Name, o.Problem.Func, cfg.Output.Precision, r.Root,
					report.FormatErr(r.RelErr, 4), r.Iterations, r.State, r.Reason)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d problems failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of concurrent workers (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print outcomes as JSON")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show a progress bar")
	return cmd
}
