// Package journal keeps a SQLite history of enrichment runs.
//
// The journal is write-only from the pipeline's point of view: it records
// what each run did but is never consulted to decide what to process.
// Paperless and its marker tag remain the source of truth.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mfenderov/paperless-tagger/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	selected    INTEGER NOT NULL,
	applied     INTEGER NOT NULL,
	partial     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	dry_run     INTEGER NOT NULL,
	errors      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS documents (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	document_id  INTEGER NOT NULL,
	status       TEXT NOT NULL,
	title        TEXT,
	tags         TEXT NOT NULL DEFAULT '[]',
	tag_ids      TEXT NOT NULL DEFAULT '[]',
	error        TEXT,
	raw_output   TEXT,
	processed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
CREATE INDEX IF NOT EXISTS idx_documents_document ON documents(document_id);
`

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded run.
type Run struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Selected  int
	Applied   int
	Partial   int
	Skipped   int
	Failed    int
	DryRun    bool
	Errors    []string
}

// Entry is one recorded document outcome.
type Entry struct {
	RunID       string
	DocumentID  int
	Status      events.DocumentStatus
	Title       string
	Tags        []string
	TagIDs      []int
	Error       string
	RawOutput   string
	ProcessedAt time.Time
}

// Journal is a SQLite-backed run history. It implements pipeline.Observer.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DocumentProcessed records one document outcome.
func (j *Journal) DocumentProcessed(ctx context.Context, e events.DocumentProcessedEvent) error {
	tags, err := marshal(e.Tags)
	if err != nil {
		return err
	}
	tagIDs, err := marshal(e.TagIDs)
	if err != nil {
		return err
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO documents (run_id, document_id, status, title, tags, tag_ids, error, raw_output, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.DocumentID, string(e.Status), e.Title, tags, tagIDs, e.Error, e.RawOutput,
		e.Timestamp.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record document %d: %w", e.DocumentID, err)
	}
	return nil
}

// RunComplete records the run summary, replacing an earlier one for the same id.
func (j *Journal) RunComplete(ctx context.Context, e events.RunCompleteEvent) error {
	errs, err := marshal(e.Errors)
	if err != nil {
		return err
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, started_at, duration_ms, selected, applied, partial, skipped, failed, dry_run, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.StartedAt.UTC().Format(timeFormat), e.Duration.Milliseconds(),
		e.Selected, e.Applied, e.Partial, e.Skipped, e.Failed, boolInt(e.DryRun), errs,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", e.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, selected, applied, partial, skipped, failed, dry_run, errors
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMS int64
			dryRun     int
			errs       string
		)
		if err := rows.Scan(&r.RunID, &startedAt, &durationMS, &r.Selected, &r.Applied,
			&r.Partial, &r.Skipped, &r.Failed, &dryRun, &errs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeFormat, startedAt)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.DryRun = dryRun != 0
		if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors of run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the document outcomes of a run, in processing order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, document_id, status, title, tags, tag_ids, error, raw_output, processed_at
		FROM documents WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			status, tags, ids  string
			title, errMsg, raw sql.NullString
			processedAt        string
		)
		if err := rows.Scan(&e.RunID, &e.DocumentID, &status, &title, &tags, &ids, &errMsg, &raw, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Status = events.DocumentStatus(status)
		e.Title = title.String
		e.Error = errMsg.String
		e.RawOutput = raw.String
		e.ProcessedAt, _ = time.Parse(timeFormat, processedAt)
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &e.TagIDs); err != nil {
			return nil, fmt.Errorf("failed to decode tag ids: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode journal field: %w", err)
	}
	return string(data), nil
}
