// Package store persists pipeline state in SQLite: the batch counter that
// numbers archive directories across restarts, and a per-document outcome
// journal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document statuses.
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// DocumentRecord is one row of the document journal.
type DocumentRecord struct {
	DocID       string
	Status      string
	Outcome     string
	BatchNumber int
	Detail      string
	UpdatedAt   string
}

// BatchState is the persisted batch counter.
type BatchState struct {
	BatchNumber   int
	TotalArchives int
	LastArchiveAt *time.Time
}

// Store wraps the SQLite state database. Counter mutations are serialized
// by a mutex: correctness of batch numbering matters more than write
// throughput here.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// New opens (or creates) the state database. A corrupt database is not
// fatal: it is moved aside and a fresh one starts at batch 1, because
// losing the counter only mislabels future archive directories while
// refusing to start would stall the whole pipeline.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	s, err := open(dbPath, logger)
	if err == nil {
		return s, nil
	}

	quarantine := dbPath + ".corrupt"
	logger.Warn("state database unusable, starting fresh at batch 1",
		"path", dbPath, "moved_to", quarantine, "error", err)
	if mvErr := os.Rename(dbPath, quarantine); mvErr != nil {
		return nil, fmt.Errorf("quarantining corrupt state db: %v (original error: %w)", mvErr, err)
	}
	return open(dbPath, logger)
}

func open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// BatchNumber returns the current batch counter.
func (s *Store) BatchNumber(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT batch_number FROM batch_state WHERE id = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("reading batch number: %w", err)
	}
	return n, nil
}

// AdvanceBatch increments the batch counter after a successful archival
// and returns the new value. The write commits before return.
func (s *Store) AdvanceBatch(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE batch_state
		SET batch_number = batch_number + 1,
		    total_archives = total_archives + 1,
		    last_archive_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`); err != nil {
		return 0, fmt.Errorf("advancing batch counter: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT batch_number FROM batch_state WHERE id = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("re-reading batch number: %w", err)
	}
	return n, nil
}

// State returns the full batch state.
func (s *Store) State(ctx context.Context) (*BatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st BatchState
	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `
		SELECT batch_number, total_archives, last_archive_at
		FROM batch_state WHERE id = 1
	`).Scan(&st.BatchNumber, &st.TotalArchives, &last); err != nil {
		return nil, fmt.Errorf("reading batch state: %w", err)
	}
	if last.Valid {
		st.LastArchiveAt = &last.Time
	}
	return &st, nil
}

// RecordOutcome upserts a document's journal row.
func (s *Store) RecordOutcome(ctx context.Context, docID, status, outcome string, batch int, detail string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, status, outcome, batch_number, detail, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(doc_id) DO UPDATE SET
			status = excluded.status,
			outcome = excluded.outcome,
			batch_number = excluded.batch_number,
			detail = excluded.detail,
			updated_at = CURRENT_TIMESTAMP
	`, docID, status, outcome, batch, detail); err != nil {
		return fmt.Errorf("recording outcome for %s: %w", docID, err)
	}
	return nil
}

// Document returns one journal row, or nil when the document is unknown.
func (s *Store) Document(ctx context.Context, docID string) (*DocumentRecord, error) {
	var rec DocumentRecord
	var outcome, detail sql.NullString
	var batch sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, status, outcome, batch_number, detail, updated_at
		FROM documents WHERE doc_id = ?
	`, docID).Scan(&rec.DocID, &rec.Status, &outcome, &batch, &detail, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", docID, err)
	}
	rec.Outcome = outcome.String
	rec.Detail = detail.String
	rec.BatchNumber = int(batch.Int64)
	return &rec, nil
}
