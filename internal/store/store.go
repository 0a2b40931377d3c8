// Package store persists clustering runs in SQLite so a session can be
// replayed or exported later.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kmviz/internal/kmeans"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("store: run not found")

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS centroids (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		x DOUBLE NOT NULL,
		y DOUBLE NOT NULL,
		PRIMARY KEY (run_id, iteration, idx)
	);
	CREATE TABLE IF NOT EXISTS points (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		x DOUBLE NOT NULL,
		y DOUBLE NOT NULL,
		cluster INTEGER NOT NULL,
		PRIMARY KEY (run_id, iteration, idx)
	);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Run is one recorded clustering session.
type Run struct {
	ID         uuid.UUID
	Name       string
	CreatedAt  time.Time
	Iterations int
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLITE_BUSY away from the recorder
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a new run and returns its id.
func (s *Store) CreateRun(ctx context.Context, name string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, name, created_at) VALUES (?, ?, ?)",
		id.String(), name, time.Now().UnixNano())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveSnapshot stores one iteration of a run, replacing any earlier copy of
// the same iteration.
func (s *Store) SaveSnapshot(ctx context.Context, runID uuid.UUID, snap kmeans.Snapshot) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := runID.String()
	for _, table := range []string{"snapshots", "centroids", "points"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE run_id = ? AND iteration = ?", id, snap.Iteration); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (run_id, iteration) VALUES (?, ?)", id, snap.Iteration); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	cstmt, err := tx.PrepareContext(ctx,
		"INSERT INTO centroids (run_id, iteration, idx, x, y) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer cstmt.Close()
	for i, c := range snap.Centroids {
		if _, err := cstmt.ExecContext(ctx, id, snap.Iteration, i, c.X, c.Y); err != nil {
			return fmt.Errorf("insert centroid %d: %w", i, err)
		}
	}

	pstmt, err := tx.PrepareContext(ctx,
		"INSERT INTO points (run_id, iteration, idx, x, y, cluster) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer pstmt.Close()
	for i, p := range snap.Points {
		if _, err := pstmt.ExecContext(ctx, id, snap.Iteration, i, p.X, p.Y, p.Cluster); err != nil {
			return fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Truncate drops every iteration after the given one.
func (s *Store) Truncate(ctx context.Context, runID uuid.UUID, iteration int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"snapshots", "centroids", "points"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE run_id = ? AND iteration > ?", runID.String(), iteration); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// LoadSnapshots returns the stored iterations of a run in order.
func (s *Store) LoadSnapshots(ctx context.Context, runID uuid.UUID) ([]kmeans.Snapshot, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	id := runID.String()

	rows, err := s.db.QueryContext(ctx,
		"SELECT iteration FROM snapshots WHERE run_id = ? ORDER BY iteration", id)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	var snaps []kmeans.Snapshot
	index := make(map[int]int)
	for rows.Next() {
		var it int
		if err := rows.Scan(&it); err != nil {
			rows.Close()
			return nil, err
		}
		index[it] = len(snaps)
		snaps = append(snaps, kmeans.Snapshot{Iteration: it})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT iteration, x, y FROM centroids WHERE run_id = ? ORDER BY iteration, idx", id)
	if err != nil {
		return nil, fmt.Errorf("query centroids: %w", err)
	}
	for rows.Next() {
		var it int
		var c kmeans.Centroid
		if err := rows.Scan(&it, &c.X, &c.Y); err != nil {
			rows.Close()
			return nil, err
		}
		if i, ok := index[it]; ok {
			snaps[i].Centroids = append(snaps[i].Centroids, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT iteration, x, y, cluster FROM points WHERE run_id = ? ORDER BY iteration, idx", id)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it int
		var p kmeans.Point
		if err := rows.Scan(&it, &p.X, &p.Y, &p.Cluster); err != nil {
			return nil, err
		}
		if i, ok := index[it]; ok {
			snaps[i].Points = append(snaps[i].Points, p)
		}
	}
	return snaps, rows.Err()
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.name, r.created_at, COUNT(s.iteration)
		FROM runs r
		LEFT JOIN snapshots s ON s.run_id = r.run_id
		GROUP BY r.run_id, r.name, r.created_at
		ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id      string
			run     Run
			created int64
		)
		if err := rows.Scan(&id, &run.Name, &created, &run.Iterations); err != nil {
			return nil, err
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("bad run id %q: %w", id, err)
		}
		run.CreatedAt = time.Unix(0, created)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) requireRun(ctx context.Context, runID uuid.UUID) error {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE run_id = ?", runID.String()).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
