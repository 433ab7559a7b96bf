package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"mochi/pkg/synth"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("store: run not found")

// Run describes one stored dataset.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Seed      int64     `json:"seed"`
	Rows      int       `json:"rows"`
	Workers   int       `json:"workers"`
	RulesPath string    `json:"rules_path"`
}

// Store is a SQLite-backed run store. It is safe for concurrent use; the
// pool holds a single connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores run and its records in one transaction. An empty run.ID
// gets a fresh UUID and a zero CreatedAt gets the current time. Rows is
// always set from len(records).
func (s *Store) SaveRun(ctx context.Context, run Run, records []synth.Record) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.Rows = len(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, seed, row_count, workers, rules_path) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Seed, run.Rows, run.Workers, run.RulesPath); err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(run_id, seq, day, hour, duration_minutes, location, weather, people_home, mood, trigger_name, reward_given, activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		trigger := sql.NullString{String: r.Trigger, Valid: r.Trigger != ""}
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Day, r.Time, r.DurationMinutes, r.Location,
			r.Weather, r.PeopleHome, r.Mood, trigger, r.RewardGiven, r.Activity); err != nil {
			return Run{}, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// LoadRun returns a run and its records in generation order.
func (s *Store) LoadRun(ctx context.Context, id string) (Run, []synth.Record, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return Run{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT day, hour, duration_minutes, location, weather, people_home,
		mood, trigger_name, reward_given, activity FROM records WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]synth.Record, 0, run.Rows)
	for rows.Next() {
		var (
			r       synth.Record
			trigger sql.NullString
		)
		if err := rows.Scan(&r.Day, &r.Time, &r.DurationMinutes, &r.Location, &r.Weather, &r.PeopleHome,
			&r.Mood, &trigger, &r.RewardGiven, &r.Activity); err != nil {
			return Run{}, nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Trigger = trigger.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, err
	}
	return run, records, nil
}

// GetRun returns a run's metadata without its records.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, seed, row_count, workers, rules_path FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, seed, row_count, workers, rules_path FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
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
	return runs, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its records.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// ActivityCounts returns how many records of a run carry each activity.
func (s *Store) ActivityCounts(ctx context.Context, id string) (map[string]int, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT activity, COUNT(*) FROM records WHERE run_id = ? GROUP BY activity`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		created string
	)
	if err := sc.Scan(&run.ID, &created, &run.Seed, &run.Rows, &run.Workers, &run.RulesPath); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s has bad created_at %q: %w", run.ID, created, err)
	}
	run.CreatedAt = t
	return run, nil
}
