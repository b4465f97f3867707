package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"falsepos/internal/report"
	"falsepos/internal/store"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		dbPath string
		last   int
		id     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs, or print one run with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Server.DBPath
			}
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			st, err := store.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			ropts := report.Options{Precision: cfg.Output.Precision, Color: cfg.Output.Color}

			if id != "" {
				run, err := st.GetRun(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %s: f(x) = %s on [%g, %g], tol %g%%\n\n", run.ID, run.Expr, run.XL, run.XU, run.Tolerance)
				if run.Err != "" {
					fmt.Fprintf(out, "%s: %s\n", run.Result.State, run.Err)
					return nil
				}
				if err := report.WriteTable(out, run.Result.Iters, ropts); err != nil {
					return err
				}
				return report.WriteSummary(out, run.Result, ropts)
			}

			runs, err := st.ListRuns(last)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tFUNCTION\tBRACKET\tSTATE\tROOT\tITER")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t[%g, %g]\t%s\t%.*f\t%d\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Expr, r.XL, r.XU,
					r.Result.State, cfg.Output.Precision, r.Result.Root, r.Result.Iterations)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().IntVar(&last, "last", 20, "Show N most recent runs")
	cmd.Flags().StringVar(&id, "id", "", "Show a single run")
	return cmd
}
