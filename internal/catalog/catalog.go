// Package catalog records collection runs and fits in a SQLite database.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Catalog is a SQLite database of collection runs and fits.
type Catalog struct {
	*sql.DB
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations. ":memory:" gives a throwaway catalog.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	c := &Catalog{db}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Run is one completed data collection.
type Run struct {
	ID         string
	SessionID  string
	Path       string
	Cycles     int
	Lines      int
	Frequency  float64
	Amplitude  int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordRun inserts r, assigning an ID when it has none.
func (c *Catalog) RecordRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := c.Exec(
		`INSERT INTO runs (
			run_id, session_id, path, cycles, lines, frequency, amplitude,
			skipped, started_unix_ns, finished_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Path, r.Cycles, r.Lines, r.Frequency, r.Amplitude,
		r.Skipped, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, most recent first. limit <= 0 returns all.
func (c *Catalog) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.Query(
		`SELECT run_id, session_id, path, cycles, lines, frequency, amplitude,
			skipped, started_unix_ns, finished_unix_ns
		FROM runs ORDER BY started_unix_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Path, &r.Cycles, &r.Lines,
			&r.Frequency, &r.Amplitude, &r.Skipped, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FitRecord is one oscillator fit with its parameter variances.
type FitRecord struct {
	ID         string
	DataPath   string
	Points     int
	Params     [4]float64
	Variances  [4]float64
	SSR        float64
	Iterations int
	CreatedAt  time.Time
}

// RecordFit inserts f, assigning an ID when it has none.
func (c *Catalog) RecordFit(f *FitRecord) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := c.Exec(
		`INSERT INTO fits (
			fit_id, data_path, points, amplitude, phi0, beta, omega_d,
			var_amplitude, var_phi0, var_beta, var_omega_d, ssr, iterations,
			created_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.DataPath, f.Points,
		f.Params[0], f.Params[1], f.Params[2], f.Params[3],
		f.Variances[0], f.Variances[1], f.Variances[2], f.Variances[3],
		f.SSR, f.Iterations, f.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record fit: %w", err)
	}
	return nil
}

// Fits returns up to limit fits, most recent first. limit <= 0 returns all.
func (c *Catalog) Fits(limit int) ([]FitRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.Query(
		`SELECT fit_id, data_path, points, amplitude, phi0, beta, omega_d,
			var_amplitude, var_phi0, var_beta, var_omega_d, ssr, iterations,
			created_unix_ns
		FROM fits ORDER BY created_unix_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fits: %w", err)
	}
	defer rows.Close()

	var fits []FitRecord
	for rows.Next() {
		var f FitRecord
		var created int64
		if err := rows.Scan(&f.ID, &f.DataPath, &f.Points,
			&f.Params[0], &f.Params[1], &f.Params[2], &f.Params[3],
			&f.Variances[0], &f.Variances[1], &f.Variances[2], &f.Variances[3],
			&f.SSR, &f.Iterations, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = time.Unix(0, created).UTC()
		fits = append(fits, f)
	}
	return fits, rows.Err()
}
