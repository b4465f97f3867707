package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"falsepos/internal/optimizer"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func cubicRun(t *testing.T) Run {
	t.Helper()
	f := optimizer.FuncOf(func(x float64) float64 { return x*x*x - 4*x + 1 })
	res, err := optimizer.FalsePosition(f, 0, 1, optimizer.Options{Tolerance: 0.01, MaxIter: 50}, nil)
	if err != nil {
		t.Fatalf("FalsePosition: %v", err)
	}
	return Run{Expr: "x^3 - 4*x + 1", XL: 0, XU: 1, Tolerance: 0.01, MaxIter: 50, Result: res}
}

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	run := cubicRun(t)

	id, err := s.SaveRun(run)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Expr != run.Expr || got.Result.State != optimizer.StateConverged || got.Result.Reason != optimizer.ReasonTolerance {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.Result.Root != run.Result.Root || got.Result.Iterations != run.Result.Iterations {
		t.Fatalf("result mismatch: %+v", got.Result)
	}
	if len(got.Result.Iters) != len(run.Result.Iters) {
		t.Fatalf("expected %d iters, got %d", len(run.Result.Iters), len(got.Result.Iters))
	}
	if got.Result.Iters[0].RelErr != nil {
		t.Fatal("first iteration error should stay nil")
	}
	for i := 1; i < len(got.Result.Iters); i++ {
		want, have := run.Result.Iters[i], got.Result.Iters[i]
		if have.XR != want.XR || have.RelErr == nil || *have.RelErr != *want.RelErr {
			t.Fatalf("iter %d mismatch: %+v vs %+v", i, have, want)
		}
	}
}

func TestSaveFailedRun(t *testing.T) {
	s := tempDB(t)
	_, runErr := optimizer.FalsePosition(optimizer.FuncOf(func(x float64) float64 { return x*x + 1 }), -1, 1,
		optimizer.Options{Tolerance: 1}, nil)

	id, err := s.SaveRun(Run{
		Expr: "x^2 + 1", XL: -1, XU: 1, Tolerance: 1,
		Err:    runErr.Error(),
		Result: optimizer.Result{State: optimizer.StateOf(runErr)},
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Result.State != optimizer.StateUnbracketed || got.Err == "" || len(got.Result.Iters) != 0 {
		t.Fatalf("unexpected run %+v", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := cubicRun(t)
		run.ID = id
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.SaveRun(run); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[0].Result.Iters != nil {
		t.Fatal("list should not load records")
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := tempDB(t)
	run := cubicRun(t)
	run.ID = "dup"
	if _, err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := s.SaveRun(run); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
