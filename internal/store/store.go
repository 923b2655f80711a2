// Package store keeps the run history: every completed segmentation run and
// every boxplot fetched against it.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/segment"
)

// ErrNotFound is returned when a run or boxplot does not exist.
var ErrNotFound = errors.New("not found")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run is one stored segmentation run.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Algorithm    segment.Algorithm
	Features     []string
	Params       Params
	Err          string // empty for successful runs
	Stats        map[string]analytics.ClusterStat
	Assignments  analytics.Assignments
	ClusterCount int
	TotalRecords int
	Elapsed      time.Duration
}

// Params is the algorithm parameter set that was actually sent.
type Params struct {
	NClusters  int     `json:"n_clusters,omitempty"`
	Eps        float64 `json:"eps,omitempty"`
	MinSamples int     `json:"min_samples,omitempty"`
}

// Status is "success" or "error".
func (r Run) Status() segment.Status {
	if r.Err != "" {
		return segment.StatusError
	}
	return segment.StatusSuccess
}

// Result rebuilds the workflow Result so a stored run can be re-rendered.
func (r Run) Result() segment.Result {
	res := segment.Result{
		RunID:       r.ID,
		Algorithm:   r.Algorithm,
		Features:    append([]string(nil), r.Features...),
		Assignments: r.Assignments,
		Stats:       r.Stats,
		Err:         r.Err,
		Elapsed:     r.Elapsed,
	}
	switch r.Algorithm {
	case segment.KMeans:
		res.KMeans.NClusters = r.Params.NClusters
	case segment.DBSCAN:
		res.DBSCAN = segment.DBSCANParams{Eps: r.Params.Eps, MinSamples: r.Params.MinSamples}
	}
	return res
}

// RunFromResult converts a dispatcher Result into a storable Run. Only the
// parameters of the selected algorithm are kept.
func RunFromResult(res segment.Result, at time.Time) Run {
	run := Run{
		ID:          res.RunID,
		CreatedAt:   at,
		Algorithm:   res.Algorithm,
		Features:    append([]string(nil), res.Features...),
		Err:         res.Err,
		Stats:       res.Stats,
		Assignments: res.Assignments,
		Elapsed:     res.Elapsed,
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	switch res.Algorithm {
	case segment.KMeans:
		run.Params.NClusters = res.KMeans.NClusters
	case segment.DBSCAN:
		run.Params.Eps = res.DBSCAN.Eps
		run.Params.MinSamples = res.DBSCAN.MinSamples
	}
	run.ClusterCount = len(res.Stats)
	for _, st := range res.Stats {
		run.TotalRecords += st.Size
	}
	return run
}

// Boxplot is a stored chart image.
type Boxplot struct {
	RunID       string
	Feature     string
	ImageBase64 string
	CreatedAt   time.Time
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Named per store so parallel tests never share a database, shared
		// cache so every pooled connection sees the same one.
		connStr = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		algorithm TEXT NOT NULL,
		features TEXT NOT NULL,
		params TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		stats TEXT,
		assignments TEXT,
		cluster_count INTEGER NOT NULL DEFAULT 0,
		total_records INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS boxplots (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		feature TEXT NOT NULL,
		image_base64 TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, feature)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRun inserts or replaces a run.
// Thread-safe: acquires write lock.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	features, err := json.Marshal(run.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	stats, err := nullableJSON(run.Stats, len(run.Stats) == 0)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	assignments, err := nullableJSON(run.Assignments, len(run.Assignments) == 0)
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs (
			id, created_at, algorithm, features, params, error, stats, assignments,
			cluster_count, total_records, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.UTC(),
		string(run.Algorithm),
		string(features),
		string(params),
		run.Err,
		stats,
		assignments,
		run.ClusterCount,
		run.TotalRecords,
		run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, without assignments.
// Thread-safe: acquires read lock.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, created_at, algorithm, features, params, error, stats, NULL,
			cluster_count, total_records, elapsed_ms
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun loads one run by id. A unique id prefix is accepted.
// Thread-safe: acquires read lock.
func (s *Store) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, created_at, algorithm, features, params, error, stats, assignments,
			cluster_count, total_records, elapsed_ms
		FROM runs
		WHERE id = ? OR id LIKE ? || '%'
		ORDER BY id = ? DESC
		LIMIT 2
	`, id, id, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch {
	case len(found) == 0:
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run prefix %q is ambiguous", id)
	}
}

// SaveBoxplot stores the image for (runID, feature), replacing any earlier
// fetch of the same pair.
// Thread-safe: acquires write lock.
func (s *Store) SaveBoxplot(b Boxplot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO boxplots (run_id, feature, image_base64, created_at)
		VALUES (?, ?, ?, ?)
	`, b.RunID, b.Feature, b.ImageBase64, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert boxplot: %w", err)
	}
	return nil
}

// Boxplots lists the boxplots stored for a run, newest first.
// Thread-safe: acquires read lock.
func (s *Store) Boxplots(runID string) ([]Boxplot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, feature, image_base64, created_at
		FROM boxplots
		WHERE run_id = ?
		ORDER BY created_at DESC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Boxplot
	for rows.Next() {
		var b Boxplot
		if err := rows.Scan(&b.RunID, &b.Feature, &b.ImageBase64, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RunCount returns the number of stored runs.
func (s *Store) RunCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row. Caller must hold s.mu.
func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		algorithm   string
		features    string
		params      string
		stats       sql.NullString
		assignments sql.NullString
		elapsedMs   int64
	)
	err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&algorithm,
		&features,
		&params,
		&run.Err,
		&stats,
		&assignments,
		&run.ClusterCount,
		&run.TotalRecords,
		&elapsedMs,
	)
	if err != nil {
		return Run{}, err
	}
	run.Algorithm = segment.Algorithm(algorithm)
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond

	if err := json.Unmarshal([]byte(features), &run.Features); err != nil {
		return Run{}, fmt.Errorf("decode features of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("decode params of run %s: %w", run.ID, err)
	}
	if stats.Valid {
		if err := json.Unmarshal([]byte(stats.String), &run.Stats); err != nil {
			return Run{}, fmt.Errorf("decode stats of run %s: %w", run.ID, err)
		}
	}
	if assignments.Valid {
		if err := json.Unmarshal([]byte(assignments.String), &run.Assignments); err != nil {
			return Run{}, fmt.Errorf("decode assignments of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func nullableJSON(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
