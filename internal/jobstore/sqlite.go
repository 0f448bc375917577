package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pagecast/pagecast/internal/structure"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_events (
	job_id      TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	step        INTEGER NOT NULL DEFAULT 0,
	source_path TEXT    NOT NULL DEFAULT '',
	message     TEXT    NOT NULL DEFAULT '',
	epub_path   TEXT    NOT NULL DEFAULT '',
	confidence  REAL    NOT NULL DEFAULT 0,
	at          INTEGER NOT NULL,
	PRIMARY KEY (job_id, seq)
);

CREATE TABLE IF NOT EXISTS snapshots (
	job_id   TEXT    NOT NULL,
	step     INTEGER NOT NULL,
	doc      BLOB    NOT NULL,
	saved_at INTEGER NOT NULL,
	PRIMARY KEY (job_id, step)
);
`

// SQLiteStore persists the event log in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path. Use ":memory:"
// for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate job database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append adds an event inside a transaction so the terminal-state check
// and the insert are atomic.
func (s *SQLiteStore) Append(ctx context.Context, ev Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	events, err := eventsTx(ctx, tx, ev.JobID)
	if err != nil {
		return err
	}
	if len(events) > 0 && Reduce(ev.JobID, events).Status.Terminal() {
		return ErrJobTerminal
	}

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_events (job_id, seq, kind, step, source_path, message, epub_path, confidence, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.JobID, int64(len(events)+1), string(ev.Kind), int(ev.Step),
		ev.SourcePath, ev.Message, ev.EpubPath, ev.Confidence, ev.At.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Events(ctx context.Context, jobID string) ([]Event, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()
	return eventsTx(ctx, tx, jobID)
}

func eventsTx(ctx context.Context, tx *sql.Tx, jobID string) ([]Event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT job_id, seq, kind, step, source_path, message, epub_path, confidence, at
		FROM job_events WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind string
		var step int
		var at int64
		if err := rows.Scan(&ev.JobID, &ev.Seq, &kind, &step, &ev.SourcePath,
			&ev.Message, &ev.EpubPath, &ev.Confidence, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.Step = structure.Step(step)
		ev.At = time.UnixMicro(at).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Job(ctx context.Context, jobID string) (*structure.ConversionJob, error) {
	events, err := s.Events(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return Reduce(jobID, events), nil
}

func (s *SQLiteStore) Jobs(ctx context.Context) ([]*structure.ConversionJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id FROM job_events GROUP BY job_id ORDER BY MIN(at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jobs := make([]*structure.ConversionJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, jobID string, step structure.Step, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (job_id, step, doc, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (job_id, step) DO UPDATE SET doc = excluded.doc, saved_at = excluded.saved_at`,
		jobID, int(step), doc, time.Now().UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context, jobID string, step structure.Step) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM snapshots WHERE job_id = ? AND step = ?`,
		jobID, int(step)).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
