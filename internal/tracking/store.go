package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL,
	run_name      TEXT NOT NULL,
	status        TEXT NOT NULL,
	start_time    INTEGER NOT NULL,
	end_time      INTEGER,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id)
);

CREATE TABLE IF NOT EXISTS params (
	run_id TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (run_id, key),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS metrics (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     REAL NOT NULL,
	logged_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS model_versions (
	name       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	run_id     TEXT NOT NULL,
	artifact   BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (name, version),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Store keeps experiments, runs and registered models in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dsn and runs migrations.
// Use ":memory:" for a throwaway store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tracking: open db: %w", err)
	}
	// One connection: pragmas are per connection and ":memory:" is per
	// connection too.
	db.SetMaxOpenConns(1)
	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("tracking: pragma: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracking: pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracking: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SetExperiment returns the experiment called name, creating it if needed.
func (s *Store) SetExperiment(ctx context.Context, name string) (Experiment, error) {
	exp, err := s.ExperimentByName(ctx, name)
	if err == nil {
		return exp, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Experiment{}, err
	}
	exp = Experiment{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (experiment_id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		exp.ID, exp.Name, exp.CreatedAt.UnixNano())
	if err != nil {
		return Experiment{}, fmt.Errorf("tracking: create experiment: %w", err)
	}
	// a concurrent writer may have won the insert
	return s.ExperimentByName(ctx, name)
}

func (s *Store) ExperimentByName(ctx context.Context, name string) (Experiment, error) {
	var (
		exp     Experiment
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT experiment_id, name, created_at FROM experiments WHERE name = ?`, name,
	).Scan(&exp.ID, &exp.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Experiment{}, fmt.Errorf("%w: experiment %q", ErrNotFound, name)
	}
	if err != nil {
		return Experiment{}, fmt.Errorf("tracking: get experiment: %w", err)
	}
	exp.CreatedAt = time.Unix(0, created).UTC()
	return exp, nil
}

func (s *Store) StartRun(ctx context.Context, experimentID, name string) (Run, error) {
	run := Run{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		Name:         name,
		Status:       StatusRunning,
		StartTime:    s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, experiment_id, run_name, status, start_time) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ExperimentID, run.Name, string(run.Status), run.StartTime.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("tracking: start run: %w", err)
	}
	return run, nil
}

// LogParams records params for a run. Params are immutable once set.
func (s *Store) LogParams(ctx context.Context, runID string, params map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracking: begin tx: %w", err)
	}
	defer tx.Rollback()
	for k, v := range params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)`, runID, k, v); err != nil {
			return fmt.Errorf("tracking: log param %q: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LogMetric(ctx context.Context, runID, key string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (run_id, key, value, logged_at) VALUES (?, ?, ?, ?)`,
		runID, key, value, s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("tracking: log metric %q: %w", key, err)
	}
	return nil
}

func (s *Store) EndRun(ctx context.Context, runID string, status RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE run_id = ?`,
		string(status), s.now().UTC().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("tracking: end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	runs, err := s.queryRuns(ctx, `WHERE run_id = ?`, runID)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return runs[0], nil
}

// SearchRuns returns runs of an experiment, newest first. limit <= 0 means all.
func (s *Store) SearchRuns(ctx context.Context, experimentID string, limit int) ([]Run, error) {
	clause := `WHERE experiment_id = ? ORDER BY start_time DESC, rowid DESC`
	args := []any{experimentID}
	if limit > 0 {
		clause += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryRuns(ctx, clause, args...)
}

func (s *Store) queryRuns(ctx context.Context, clause string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, experiment_id, run_name, status, start_time, end_time FROM runs `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("tracking: query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var (
			r      Run
			status string
			start  int64
			end    sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ExperimentID, &r.Name, &status, &start, &end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("tracking: scan run: %w", err)
		}
		r.Status = RunStatus(status)
		r.StartTime = time.Unix(0, start).UTC()
		if end.Valid {
			r.EndTime = time.Unix(0, end.Int64).UTC()
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Params, err = s.params(ctx, runs[i].ID); err != nil {
			return nil, err
		}
		if runs[i].Metrics, err = s.latestMetrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) params(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM params WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("tracking: query params: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("tracking: scan param: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) latestMetrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM metrics WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("tracking: query metrics: %w", err)
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var (
			k string
			v float64
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("tracking: scan metric: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// RegisterModelVersion stores artifact as the next version of name.
func (s *Store) RegisterModelVersion(ctx context.Context, name, runID string, artifact []byte) (ModelVersion, error) {
	if strings.TrimSpace(name) == "" {
		return ModelVersion{}, errors.New("tracking: model name is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("tracking: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM model_versions WHERE name = ?`, name,
	).Scan(&current); err != nil {
		return ModelVersion{}, fmt.Errorf("tracking: next version: %w", err)
	}
	mv := ModelVersion{
		Name:      name,
		Version:   current + 1,
		RunID:     runID,
		Artifact:  artifact,
		CreatedAt: s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO model_versions (name, version, run_id, artifact, created_at) VALUES (?, ?, ?, ?, ?)`,
		mv.Name, mv.Version, mv.RunID, mv.Artifact, mv.CreatedAt.UnixNano()); err != nil {
		return ModelVersion{}, fmt.Errorf("tracking: register model: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ModelVersion{}, fmt.Errorf("tracking: commit: %w", err)
	}
	return mv, nil
}

func (s *Store) LatestModelVersion(ctx context.Context, name string) (ModelVersion, error) {
	var (
		mv      ModelVersion
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, version, run_id, artifact, created_at FROM model_versions
		 WHERE name = ? ORDER BY version DESC LIMIT 1`, name,
	).Scan(&mv.Name, &mv.Version, &mv.RunID, &mv.Artifact, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("%w: model %q", ErrNotFound, name)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("tracking: latest model: %w", err)
	}
	mv.CreatedAt = time.Unix(0, created).UTC()
	return mv, nil
}
