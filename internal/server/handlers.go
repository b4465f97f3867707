package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"falsepos/internal/optimizer"
	"falsepos/internal/plot"
	"falsepos/internal/report"
	"falsepos/internal/sse"
	"falsepos/internal/store"
)

// StartRun validates the parameters, answers with the run id and the curve
// preview, and runs the method in the background.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var p RunParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := optimizer.Options{
		Tolerance: s.cfg.Solver.Tolerance,
		MaxIter:   s.cfg.Solver.MaxIter,
		SafetyCap: s.cfg.Solver.SafetyCap,
	}
	if p.Tol != nil {
		opts.Tolerance = *p.Tol
	}
	if p.MaxIter != nil {
		opts.MaxIter = *p.MaxIter
	}
	if err := opts.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, err := optimizer.NewEvalFunc(p.Func)
	if err != nil {
		http.Error(w, "bad function expression: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, _, err := optimizer.CheckBracket(f, p.XL, p.XU); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	preview, err := plot.Build(f, p.XL, p.XU, nil, s.cfg.Server.Samples)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	rs := &RunState{
		ID:        id,
		Params:    p,
		Options:   opts,
		Func:      f,
		CreatedAt: time.Now(),
		Cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.saveRun(rs)
	s.log.Printf("run %s started: f(x) = %s on [%g, %g], tol %g%%, maxIter %d",
		id, p.Func, p.XL, p.XU, opts.Tolerance, opts.MaxIter)

	go s.execute(ctx, rs)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":   id,
		"plot": preview,
	})
}

func (s *Server) publish(id, typ string, fields map[string]any) {
	payload := map[string]any{"type": typ}
	for k, v := range fields {
		payload[k] = v
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		s.log.Printf("run %s: encode %s event: %v", id, typ, err)
		return
	}
	s.hub.Publish(id, sse.Event{Data: string(msg)})
}

func (s *Server) execute(ctx context.Context, rs *RunState) {
	defer rs.Cancel()
	s.publish(rs.ID, "start", map[string]any{"id": rs.ID})

	onIter := func(it optimizer.Iter) error {
		select {
		case <-ctx.Done():
			return optimizer.ErrStopped
		default:
		}
		rs.addIter(it)
		s.publish(rs.ID, "iter", map[string]any{"iter": it})
		return nil
	}

	res, err := optimizer.FalsePosition(rs.Func, rs.Params.XL, rs.Params.XU, rs.Options, onIter)
	rs.setResult(res, err)
	defer close(rs.done)
	defer s.persist(rs, res, err)

	switch {
	case errors.Is(err, optimizer.ErrStopped):
		s.log.Printf("run %s stopped", rs.ID)
		s.publish(rs.ID, "stopped", nil)
	case err != nil:
		s.log.Printf("run %s failed: %v", rs.ID, err)
		s.publish(rs.ID, "error", map[string]any{"err": err.Error()})
	default:
		s.log.Printf("run %s %s (%s) after %d iterations: root %g",
			rs.ID, res.State, res.Reason, res.Iterations, res.Root)
		s.publish(rs.ID, "done", map[string]any{
			"root":   res.Root,
			"xl":     res.XL,
			"xu":     res.XU,
			"relErr": res.RelErr,
			"state":  res.State,
			"reason": res.Reason,
		})
	}
}

func (s *Server) persist(rs *RunState, res optimizer.Result, runErr error) {
	if s.store == nil {
		return
	}
	run := store.Run{
		ID:        rs.ID,
		Expr:      rs.Params.Func,
		XL:        rs.Params.XL,
		XU:        rs.Params.XU,
		Tolerance: rs.Options.Tolerance,
		MaxIter:   rs.Options.MaxIter,
		CreatedAt: rs.CreatedAt,
		Result:    res,
	}
	if runErr != nil {
		// keep the partial trace of failed and stopped runs
		iters := rs.snapshot().Iters
		state, reason := optimizer.Classify(runErr)
		run.Err = runErr.Error()
		run.Result = optimizer.Result{State: state, Reason: reason, Iters: iters, Iterations: len(iters)}
	}
	if _, err := s.store.SaveRun(run); err != nil {
		s.log.Printf("run %s: save: %v", rs.ID, err)
	}
}

// StopRun cancels a running run.
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	rs, ok := s.runFromQuery(w, r)
	if !ok {
		return
	}
	rs.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// GetRun returns the current snapshot of a run as JSON.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if rs := s.getRun(id); rs != nil {
		writeJSON(w, rs.snapshot())
		return
	}
	run, ok := s.storedRun(w, id)
	if !ok {
		return
	}
	res := run.Result
	writeJSON(w, Snapshot{
		ID:     run.ID,
		Params: RunParams{Func: run.Expr, XL: run.XL, XU: run.XU, Tol: &run.Tolerance, MaxIter: &run.MaxIter},
		Done:   true,
		State:  res.State,
		Reason: res.Reason,
		Err:    run.Err,
		Result: &res,
		Iters:  res.Iters,
	})
}

// ExportCSV writes the records of a run as CSV.
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	var iters []optimizer.Iter
	if rs := s.getRun(id); rs != nil {
		iters = rs.snapshot().Iters
	} else {
		run, ok := s.storedRun(w, id)
		if !ok {
			return
		}
		iters = run.Result.Iters
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=iterations_"+id+".csv")
	if err := report.WriteCSV(w, iters); err != nil {
		s.log.Printf("run %s: export: %v", id, err)
	}
}

// PlotSVG renders the curve and the iteration markers of a run.
func (s *Server) PlotSVG(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.runFromQuery(w, r)
	if !ok {
		return
	}
	d, err := plot.Build(rs.Func, rs.Params.XL, rs.Params.XU, rs.snapshot().Iters, s.cfg.Server.Samples)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := plot.WriteSVG(w, d, "False Position: f(x) = "+rs.Params.Func); err != nil {
		s.log.Printf("run %s: svg: %v", rs.ID, err)
	}
}

// History lists the most recent persisted runs.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history is disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type row struct {
		ID         string           `json:"id"`
		Func       string           `json:"func"`
		XL         float64          `json:"xl"`
		XU         float64          `json:"xu"`
		State      optimizer.State  `json:"state"`
		Reason     optimizer.Reason `json:"reason"`
		Root       float64          `json:"root"`
		Iterations int              `json:"iterations"`
		Err        string           `json:"err,omitempty"`
		CreatedAt  time.Time        `json:"createdAt"`
	}
	rows := make([]row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, row{
			ID: run.ID, Func: run.Expr, XL: run.XL, XU: run.XU,
			State: run.Result.State, Reason: run.Result.Reason,
			Root: run.Result.Root, Iterations: run.Result.Iterations,
			Err: run.Err, CreatedAt: run.CreatedAt,
		})
	}
	writeJSON(w, rows)
}

// Stream is the SSE stream of a run. It ends after the final event.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.runFromQuery(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.hub.Subscribe(rs.ID)
	defer cancel()

	// a run that already ended publishes nothing more
	if snap := rs.snapshot(); snap.Done {
		writeSnapshot(w, snap)
		flusher.Flush()
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := sse.Write(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if isFinal(ev) {
				return
			}
		case <-rs.done:
			// the final event is buffered unless the hub dropped it
			for {
				select {
				case ev := <-ch:
					_ = sse.Write(w, ev)
					if isFinal(ev) {
						flusher.Flush()
						return
					}
				default:
					writeSnapshot(w, rs.snapshot())
					flusher.Flush()
					return
				}
			}
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snap Snapshot) {
	msg, _ := json.Marshal(map[string]any{"type": "snapshot", "run": snap})
	_ = sse.Write(w, sse.Event{Data: string(msg)})
}

func isFinal(ev sse.Event) bool {
	var m struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &m); err != nil {
		return false
	}
	switch m.Type {
	case "done", "error", "stopped":
		return true
	}
	return false
}

func (s *Server) runFromQuery(w http.ResponseWriter, r *http.Request) (*RunState, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return nil, false
	}
	rs := s.getRun(id)
	if rs == nil {
		http.Error(w, "unknown id", http.StatusNotFound)
		return nil, false
	}
	return rs, true
}

func (s *Server) storedRun(w http.ResponseWriter, id string) (store.Run, bool) {
	if s.store == nil {
		http.Error(w, "unknown id", http.StatusNotFound)
		return store.Run{}, false
	}
	run, err := s.store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown id", http.StatusNotFound)
		return store.Run{}, false
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("load run: %v", err), http.StatusInternalServerError)
		return store.Run{}, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
