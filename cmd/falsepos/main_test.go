package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"falsepos/internal/batch"
	"falsepos/internal/optimizer"
	"falsepos/internal/store"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{optimizer.ErrUnbracketed, exitUnbracketed},
		{fmt.Errorf("wrap: %w", optimizer.ErrUnbracketed), exitUnbracketed},
		{optimizer.ErrDegenerateInterval, exitNumeric},
		{optimizer.ErrNonFinite, exitNumeric},
		{optimizer.ErrInvalidTolerance, exitError},
		{os.ErrNotExist, exitError},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestSolveWithFlags(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "iters.csv")
	svgPath := filepath.Join(dir, "plot.svg")
	dbPath := filepath.Join(dir, "runs.db")

	code, out, errOut := runCLI(t, "", "solve", "--no-color",
		"-f", "x^3 - 4*x + 1", "--xl=0", "--xu=1", "--tol=0.01",
		"--csv", csvPath, "--svg", svgPath, "--db", dbPath)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, errOut)
	}
	for _, want := range []string{"Final Result", "0.2541", "converged (tolerance)", "f(xl)*f(xr)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("--no-color output has escape codes")
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("csv not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "k,xl,xu,xr") {
		t.Fatalf("unexpected csv header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}
	svg, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatalf("svg not written: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Fatalf("svg output has no <svg> element")
	}

	code, out, errOut = runCLI(t, "", "history", "--no-color", "--db", dbPath)
	if code != exitOK {
		t.Fatalf("history exit code = %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "x^3 - 4*x + 1") || !strings.Contains(out, "converged") {
		t.Fatalf("history missing the run:\n%s", out)
	}

	code, _, _ = runCLI(t, "", "history", "--db", dbPath, "--id", "missing")
	if code != exitError {
		t.Fatalf("history of unknown id: exit code = %d, want %d", code, exitError)
	}
}

func TestSolvePrompts(t *testing.T) {
	stdin := "x^3 - 4*x + 1\n0\n1\n0.01\n0\n"
	code, out, errOut := runCLI(t, stdin, "solve", "--no-color")
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, errOut)
	}
	for _, want := range []string{"Enter the lower bound", "Enter acceptable error %", "0.2541"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSolvePromptsEOF(t *testing.T) {
	code, _, errOut := runCLI(t, "x^2 - 2\n0\n", "solve", "--no-color")
	if code != exitError {
		t.Fatalf("exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "ERROR:") {
		t.Fatalf("stderr missing error: %q", errOut)
	}
}

func TestSolveFailures(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
	}{
		{"unbracketed", []string{"-f", "x^2 + 1", "--xl=-1", "--xu=1"}, exitUnbracketed},
		{"equal bounds", []string{"-f", "x - 1", "--xl=2", "--xu=2"}, exitUnbracketed},
		{"bad expression", []string{"-f", "sin(x", "--xl=0", "--xu=1"}, exitError},
		{"unknown variable", []string{"-f", "y - 1", "--xl=0", "--xu=2"}, exitError},
		{"negative tolerance", []string{"-f", "x - 1", "--xl=0", "--xu=2", "--tol=-1"}, exitError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			args := append([]string{"solve", "--no-color"}, c.args...)
			code, _, errOut := runCLI(t, "", args...)
			if code != c.want {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, c.want, errOut)
			}
		})
	}
}

func TestBatchJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	problems := `[
		{"name": "cubic", "func": "x^3 - 4*x + 1", "xl": 0, "xu": 1, "tol": 0.01},
		{"func": "x^2 - 2", "xl": 0, "xu": 2}
	]`
	if err := os.WriteFile(path, []byte(problems), 0o644); err != nil {
		t.Fatalf("write problems: %v", err)
	}

	code, out, errOut := runCLI(t, "", "batch", path, "--json", "--workers", "2")
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, errOut)
	}
	var outcomes []batch.Outcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode outcomes: %v\n%s", err, out)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Problem.Name != "cubic" || outcomes[1].Problem.Name != "#2" {
		t.Fatalf("outcomes out of order: %q, %q", outcomes[0].Problem.Name, outcomes[1].Problem.Name)
	}
	if got := outcomes[1].Result.Root; got < 1.414 || got > 1.4143 {
		t.Fatalf("sqrt(2) root = %v", got)
	}
}

func TestBatchReportsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	problems := `[{"name": "bad", "func": "x^2 + 1", "xl": -1, "xu": 1, "tol": 0.01}]`
	if err := os.WriteFile(path, []byte(problems), 0o644); err != nil {
		t.Fatalf("write problems: %v", err)
	}
	code, out, _ := runCLI(t, "", "batch", path, "--no-color", "--progress=false")
	if code != exitError {
		t.Fatalf("exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(out, "bad") {
		t.Fatalf("table missing the failed problem:\n%s", out)
	}
}

func TestErrorColorFollowsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"output": {"color": false}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, _, errOut := runCLI(t, "", "solve", "--config", path, "-f", "x^2 + 1", "--xl=-1", "--xu=1")
	if code != exitUnbracketed {
		t.Fatalf("exit code = %d, want %d", code, exitUnbracketed)
	}
	if !strings.Contains(errOut, "ERROR:") || strings.Contains(errOut, "\033[") {
		t.Fatalf("expected a plain error line, got %q", errOut)
	}

	_, _, errOut = runCLI(t, "", "solve", "-f", "x^2 + 1", "--xl=-1", "--xu=1")
	if !strings.Contains(errOut, "\033[") {
		t.Fatalf("expected a colored error line by default, got %q", errOut)
	}
}

func TestSolveSavesPartialTrace(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	// undefined on (0.24, 0.26), where the second estimate lands
	expr := "x^3 - 4*x + 1 + 0*sqrt((x - 0.24)*(x - 0.26))"
	code, _, errOut := runCLI(t, "", "solve", "--no-color", "-f", expr, "--xl=0", "--xu=1", "--db", dbPath)
	if code != exitNumeric {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitNumeric, errOut)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v, %d runs", err, len(runs))
	}
	run, err := st.GetRun(runs[0].ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Err == "" || run.Result.State != optimizer.StateFailed || run.Result.Reason != optimizer.ReasonNonFinite {
		t.Fatalf("unexpected failed run %+v", run)
	}
	if len(run.Result.Iters) != 1 || run.Result.Iterations != 1 {
		t.Fatalf("expected the first record to be kept, got %d records", len(run.Result.Iters))
	}
}
