package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"falsepos/internal/optimizer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	expression  TEXT NOT NULL,
	xl          REAL NOT NULL,
	xu          REAL NOT NULL,
	tolerance   REAL NOT NULL,
	max_iter    INTEGER NOT NULL,
	state       TEXT NOT NULL,
	reason      TEXT NOT NULL,
	root        REAL,
	final_xl    REAL,
	final_xu    REAL,
	rel_err     REAL,
	iterations  INTEGER NOT NULL,
	error       TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iters (
	run_id   TEXT NOT NULL,
	k        INTEGER NOT NULL,
	xl       REAL NOT NULL,
	xu       REAL NOT NULL,
	xr       REAL NOT NULL,
	fxl      REAL NOT NULL,
	fxu      REAL NOT NULL,
	fxr      REAL NOT NULL,
	product  REAL NOT NULL,
	rel_err  REAL,
	PRIMARY KEY (run_id, k),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// fixed width so that created_at sorts as text
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("store: run not found")

// Run is one persisted root-finding run. Failed runs keep their inputs,
// State and Err; Result is zero apart from State.
type Run struct {
	ID        string
	Expr      string
	XL, XU    float64
	Tolerance float64
	MaxIter   int
	Err       string
	CreatedAt time.Time
	Result    optimizer.Result
}

// Store keeps finished runs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time, runs are saved from several goroutines
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts run and its records in one transaction. An empty ID is
// replaced by a fresh UUID, which is returned.
func (s *Store) SaveRun(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	res := run.Result

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, expression, xl, xu, tolerance, max_iter, state, reason,
		                   root, final_xl, final_xu, rel_err, iterations, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Expr, run.XL, run.XU, run.Tolerance, run.MaxIter,
		res.State.String(), string(res.Reason),
		res.Root, res.XL, res.XU, nullable(res.RelErr), res.Iterations,
		run.Err, run.CreatedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO iters (run_id, k, xl, xu, xr, fxl, fxu, fxr, product, rel_err)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare iters: %w", err)
	}
	defer stmt.Close()
	for _, it := range res.Iters {
		if _, err := stmt.Exec(run.ID, it.K, it.XL, it.XU, it.XR, it.FXL, it.FXU, it.FXR, it.Product, nullable(it.RelErr)); err != nil {
			return "", fmt.Errorf("insert iter %d: %w", it.K, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, expression, xl, xu, tolerance, max_iter, state, reason,
	root, final_xl, final_xu, rel_err, iterations, error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                    Run
		state, reason, ts    string
		root, finalXL, finalXU, rerr sql.NullFloat64
		errText              sql.NullString
	)
	err := row.Scan(&r.ID, &r.Expr, &r.XL, &r.XU, &r.Tolerance, &r.MaxIter, &state, &reason,
		&root, &finalXL, &finalXU, &rerr, &r.Result.Iterations, &errText, &ts)
	if err != nil {
		return Run{}, err
	}
	if r.Result.State, err = optimizer.ParseState(state); err != nil {
		return Run{}, err
	}
	r.Result.Reason = optimizer.Reason(reason)
	r.Result.Root, r.Result.XL, r.Result.XU = root.Float64, finalXL.Float64, finalXU.Float64
	r.Result.RelErr = ptr(rerr)
	r.Err = errText.String
	if r.CreatedAt, err = time.Parse(tsLayout, ts); err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	return r, nil
}

// GetRun loads a run with all of its records.
func (s *Store) GetRun(id string) (Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT k, xl, xu, xr, fxl, fxu, fxr, product, rel_err
		 FROM iters WHERE run_id = ? ORDER BY k`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query iters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it   optimizer.Iter
			rerr sql.NullFloat64
		)
		if err := rows.Scan(&it.K, &it.XL, &it.XU, &it.XR, &it.FXL, &it.FXU, &it.FXR, &it.Product, &rerr); err != nil {
			return Run{}, fmt.Errorf("scan iter: %w", err)
		}
		it.RelErr = ptr(rerr)
		r.Result.Iters = append(r.Result.Iters, it)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate iters: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, without their records.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
