package server

import (
	"context"
	"log"
	"sync"
	"time"

	"falsepos/internal/config"
	"falsepos/internal/optimizer"
	"falsepos/internal/sse"
	"falsepos/internal/store"
)

// RunParams are the inputs of one run. Nil pointers take the configured
// defaults; an explicit maxIter of 0 means no user cap.
type RunParams struct {
	Func    string   `json:"func"`
	XL      float64  `json:"xl"`
	XU      float64  `json:"xu"`
	Tol     *float64 `json:"tol"`
	MaxIter *int     `json:"maxIter"`
}

// RunState is the live state of one run.
type RunState struct {
	ID        string
	Params    RunParams
	Options   optimizer.Options
	Func      optimizer.Func
	CreatedAt time.Time
	Cancel    context.CancelFunc

	mu     sync.Mutex
	iters  []optimizer.Iter
	result optimizer.Result
	err    error
	done   chan struct{} // closed once the run is published and saved
}

func (rs *RunState) addIter(it optimizer.Iter) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.iters = append(rs.iters, it)
}

func (rs *RunState) setResult(res optimizer.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.result, rs.err = res, err
}

// Snapshot is a consistent copy of a run for responses.
type Snapshot struct {
	ID     string            `json:"id"`
	Params RunParams         `json:"params"`
	Done   bool              `json:"done"`
	State  optimizer.State   `json:"state"`
	Reason optimizer.Reason  `json:"reason"`
	Err    string            `json:"err,omitempty"`
	Result *optimizer.Result `json:"result,omitempty"`
	Iters  []optimizer.Iter  `json:"iters"`
}

func (rs *RunState) snapshot() Snapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	s := Snapshot{
		ID:     rs.ID,
		Params: rs.Params,
		State:  optimizer.StateIterating,
		Iters:  append([]optimizer.Iter(nil), rs.iters...),
	}
	select {
	case <-rs.done:
		s.Done = true
	default:
		return s
	}
	if rs.err != nil {
		s.State, s.Reason = optimizer.Classify(rs.err)
		s.Err = rs.err.Error()
		return s
	}
	res := rs.result
	s.State, s.Reason, s.Result = res.State, res.Reason, &res
	return s
}

// Server owns the runs, the event hub and the optional history store.
type Server struct {
	cfg   *config.Config
	hub   *sse.Hub
	store *store.Store
	log   *log.Logger

	runsMu sync.Mutex
	runs   map[string]*RunState
}

// New creates a Server. st may be nil, history is then unavailable.
func New(cfg *config.Config, st *store.Store, logger *log.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:   cfg,
		hub:   sse.NewHub(64),
		store: st,
		log:   logger,
		runs:  map[string]*RunState{},
	}
}

func (s *Server) saveRun(rs *RunState) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	s.runs[rs.ID] = rs
}

func (s *Server) getRun(id string) *RunState {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	return s.runs[id]
}
