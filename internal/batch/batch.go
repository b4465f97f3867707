// Package batch solves many independent root-finding problems at once.
// Each problem owns its bracket and records, so problems run on a worker
// pool without sharing state.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"falsepos/internal/optimizer"
)

// Problem is one root-finding job.
type Problem struct {
	Name      string   `json:"name"`
	Func      string   `json:"func"`
	XL        float64  `json:"xl"`
	XU        float64  `json:"xu"`
	Tolerance *float64 `json:"tol"`
	MaxIter   *int     `json:"maxIter"`
}

// Outcome pairs a problem with its result or error.
type Outcome struct {
	Problem Problem          `json:"problem"`
	Result  optimizer.Result `json:"result"`
	Err     error            `json:"-"`
	Error   string           `json:"error,omitempty"`
}

// Options control the pool.
type Options struct {
	Workers   int
	SafetyCap int
	// Defaults for problems that leave tol or maxIter out.
	Tolerance float64
	MaxIter   int
	// Progress, when set, receives a progress bar.
	Progress io.Writer
}

// LoadProblems reads a JSON array of problems.
func LoadProblems(path string) ([]Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problems file: %w", err)
	}
	var problems []Problem
	if err := json.Unmarshal(data, &problems); err != nil {
		return nil, fmt.Errorf("failed to parse problems file: %w", err)
	}
	for i := range problems {
		if problems[i].Name == "" {
			problems[i].Name = fmt.Sprintf("#%d", i+1)
		}
	}
	return problems, nil
}

// Solve runs one problem.
func Solve(p Problem, opts Options) (optimizer.Result, error) {
	f, err := optimizer.NewEvalFunc(p.Func)
	if err != nil {
		return optimizer.Result{}, err
	}
	tol, maxIter := opts.Tolerance, opts.MaxIter
	if p.Tolerance != nil {
		tol = *p.Tolerance
	}
	if p.MaxIter != nil {
		maxIter = *p.MaxIter
	}
	return optimizer.FalsePosition(f, p.XL, p.XU, optimizer.Options{
		Tolerance: tol,
		MaxIter:   maxIter,
		SafetyCap: opts.SafetyCap,
	}, nil)
}

// Run solves problems concurrently. Outcomes keep the input order. A
// cancelled ctx leaves the remaining outcomes with ctx.Err().
func Run(ctx context.Context, problems []Problem, opts Options) []Outcome {
	out := make([]Outcome, len(problems))
	for i, p := range problems {
		out[i].Problem = p
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(problems) {
		workers = len(problems)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(problems),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Solving[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					out[i].Err = err
				} else {
					out[i].Result, out[i].Err = Solve(out[i].Problem, opts)
				}
				if out[i].Err != nil {
					out[i].Error = out[i].Err.Error()
				}
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	for i := range problems {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}
	return out
}
