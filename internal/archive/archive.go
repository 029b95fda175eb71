// Package archive keeps a local SQLite history of analysis runs and the
// conflicts each run found, so capacity trends can be compared over time.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrRunNotFound is returned by Run when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    snapshot   TEXT NOT NULL DEFAULT '',
    tasks      INTEGER NOT NULL DEFAULT 0,
    projects   INTEGER NOT NULL DEFAULT 0,
    resources  INTEGER NOT NULL DEFAULT 0,
    finish     INTEGER NOT NULL DEFAULT 0,
    critical   TEXT NOT NULL DEFAULT '[]',
    warnings   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conflicts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    resource_id    TEXT NOT NULL,
    resource_name  TEXT NOT NULL DEFAULT '',
    period         TEXT NOT NULL,
    period_start   TEXT NOT NULL,
    capacity       REAL NOT NULL,
    allocated      REAL NOT NULL,
    overallocation REAL NOT NULL,
    severity       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS conflicts_run ON conflicts(run_id);
CREATE INDEX IF NOT EXISTS conflicts_resource ON conflicts(resource_id, period_start);
`

// ConflictRecord is the archived form of one overallocated bucket.
type ConflictRecord struct {
	RunID          string
	ResourceID     string
	ResourceName   string
	Period         string
	PeriodStart    string
	Capacity       float64
	Allocated      float64
	Overallocation float64
	Severity       string
}

// Run is one archived analysis.
type Run struct {
	ID           string
	StartedAt    time.Time
	Snapshot     string
	Tasks        int
	Projects     int
	Resources    int
	Finish       int
	CriticalPath []string
	Warnings     int
	// Conflicts is only populated by Store.Run.
	Conflicts []ConflictRecord
	// ConflictCount is populated by both Store.Run and Store.Runs.
	ConflictCount int
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

// Open opens (or creates) the archive at dbPath, enables WAL mode and a
// busy timeout, and creates the schema if it does not exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps PRAGMAs consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}

	return &Store{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run and its conflicts in one transaction and returns the
// run id. An empty ID is filled with a new UUID and a zero StartedAt with
// the current time.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	critical, err := json.Marshal(nonNil(run.CriticalPath))
	if err != nil {
		return "", fmt.Errorf("archive: encode critical path: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	q, args, err := s.qb.Insert("runs").
		Columns("id", "started_at", "snapshot", "tasks", "projects", "resources", "finish", "critical", "warnings").
		Values(run.ID, run.StartedAt.UnixNano(), run.Snapshot, run.Tasks, run.Projects, run.Resources, run.Finish, string(critical), run.Warnings).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("archive: build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("archive: insert run %s: %w", run.ID, err)
	}

	if len(run.Conflicts) > 0 {
		ins := s.qb.Insert("conflicts").
			Columns("run_id", "resource_id", "resource_name", "period", "period_start", "capacity", "allocated", "overallocation", "severity")
		for _, c := range run.Conflicts {
			ins = ins.Values(run.ID, c.ResourceID, c.ResourceName, c.Period, c.PeriodStart, c.Capacity, c.Allocated, c.Overallocation, c.Severity)
		}
		q, args, err := ins.ToSql()
		if err != nil {
			return "", fmt.Errorf("archive: build conflict insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return "", fmt.Errorf("archive: insert conflicts for %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("archive: commit run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

func (s *Store) runQuery() sq.SelectBuilder {
	return s.qb.Select(
		"r.id", "r.started_at", "r.snapshot", "r.tasks", "r.projects", "r.resources",
		"r.finish", "r.critical", "r.warnings",
		"(SELECT COUNT(*) FROM conflicts c WHERE c.run_id = r.id)",
	).From("runs r")
}

// Runs returns up to limit runs, newest first, without their conflict
// records. A limit below 1 returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	qb := s.runQuery().OrderBy("r.started_at DESC", "r.id")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	q, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("archive: build runs query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns one run with its conflict records.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	q, args, err := s.runQuery().Where(sq.Eq{"r.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("archive: build run query: %w", err)
	}
	r, err := scanRun(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive: %w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	r.Conflicts, err = s.conflicts(ctx, sq.Eq{"run_id": id})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResourceHistory returns every archived conflict for resourceID, oldest
// period first.
func (s *Store) ResourceHistory(ctx context.Context, resourceID string) ([]ConflictRecord, error) {
	return s.conflicts(ctx, sq.Eq{"resource_id": resourceID})
}

func (s *Store) conflicts(ctx context.Context, where sq.Eq) ([]ConflictRecord, error) {
	q, args, err := s.qb.Select(
		"run_id", "resource_id", "resource_name", "period", "period_start",
		"capacity", "allocated", "overallocation", "severity",
	).From("conflicts").Where(where).OrderBy("period_start", "resource_id", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("archive: build conflicts query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var c ConflictRecord
		if err := rows.Scan(&c.RunID, &c.ResourceID, &c.ResourceName, &c.Period, &c.PeriodStart,
			&c.Capacity, &c.Allocated, &c.Overallocation, &c.Severity); err != nil {
			return nil, fmt.Errorf("archive: scan conflict: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate conflicts: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed. Their conflicts go with them.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	newest := s.qb.Select("id").From("runs").OrderBy("started_at DESC", "id").Limit(uint64(keep))
	sub, subArgs, err := newest.ToSql()
	if err != nil {
		return 0, fmt.Errorf("archive: build prune subquery: %w", err)
	}
	q, args, err := s.qb.Delete("runs").Where(sq.Expr("id NOT IN ("+sub+")", subArgs...)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("archive: build prune: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("archive: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive: prune rows affected: %w", err)
	}
	// Orphans are removed explicitly in case foreign keys are off.
	if _, err := tx.ExecContext(ctx, "DELETE FROM conflicts WHERE run_id NOT IN (SELECT id FROM runs)"); err != nil {
		return 0, fmt.Errorf("archive: prune conflicts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive: commit prune: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		started  int64
		critical string
	)
	err := row.Scan(&r.ID, &started, &r.Snapshot, &r.Tasks, &r.Projects, &r.Resources,
		&r.Finish, &critical, &r.Warnings, &r.ConflictCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("archive: scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if err := json.Unmarshal([]byte(critical), &r.CriticalPath); err != nil {
		return Run{}, fmt.Errorf("archive: decode critical path of %s: %w", r.ID, err)
	}
	return r, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
