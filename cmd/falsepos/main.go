package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"falsepos/internal/config"
	"falsepos/internal/optimizer"
	"falsepos/internal/report"
)

// Version and BuildTime are set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitUnbracketed = 2
	exitNumeric     = 3
)

type globalFlags struct {
	configPath string
	noColor    bool
	cfg        *config.Config // set by load
}

func main() {
	log.SetPrefix("[falsepos] ")
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return execute(args, os.Stdin, os.Stdout, os.Stderr)
}

func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	g := &globalFlags{}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	report.WriteError(root.ErrOrStderr(), err, report.Options{Color: g.color()})
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, optimizer.ErrUnbracketed):
		return exitUnbracketed
	case errors.Is(err, optimizer.ErrDegenerateInterval), errors.Is(err, optimizer.ErrNonFinite):
		return exitNumeric
	default:
		return exitError
	}
}

func newRootCmd(g *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "falsepos",
		Short: "falsepos - find roots with the false position (regula falsi) method",
		Long: `falsepos finds a root of f(x) inside a bracket [xl, xu] where f changes
sign, printing every iteration and optionally plotting the trace.

Tolerance is an approximate relative error in percent (0.01 = 0.01%).

Example:
  falsepos solve -f "x^3 - 4*x + 1" --xl 0 --xu 1 --tol 0.01
  falsepos solve            # prompts for every input
  falsepos batch problems.json --workers 8
  falsepos serve --config config.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newSolveCmd(g),
		newBatchCmd(g),
		newServeCmd(g),
		newHistoryCmd(g),
	)
	return root
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.noColor {
		cfg.Output.Color = false
	}
	g.cfg = cfg
	return cfg, nil
}

func (g *globalFlags) color() bool {
	if g.cfg != nil {
		return g.cfg.Output.Color
	}
	return !g.noColor && config.DefaultConfig().Output.Color
}
