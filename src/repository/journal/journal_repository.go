package journal_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Entry is one journaled operation.
type Entry struct {
	ID             string    `db:"id" json:"id"`
	Operation      string    `db:"operation" json:"operation"`
	Source         string    `db:"source" json:"source"`
	Target         string    `db:"target" json:"target"`
	ItemsProcessed int       `db:"items_processed" json:"itemsProcessed"`
	ErrorCount     int       `db:"error_count" json:"errorCount"`
	ErrorsJSON     string    `db:"errors" json:"-"`
	Errors         []string  `db:"-" json:"errors"`
	Success        bool      `db:"success" json:"success"`
	RequestID      string    `db:"request_id" json:"requestId"`
	StartedAt      time.Time `db:"started_at" json:"startedAt"`
	FinishedAt     time.Time `db:"finished_at" json:"finishedAt"`
}

const entryColumns = `id, operation, source, target, items_processed, error_count, errors, success, request_id, started_at, finished_at`

// JournalRepository persists entries in the operation_journal table. Queries
// are written with ? placeholders and rebound for the active driver.
type JournalRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewJournalRepository(db *sqlx.DB, logger *logrus.Logger) *JournalRepository {
	return &JournalRepository{db: db, logger: logger}
}

// EnsureTable creates the journal table and its index if they don't exist
func (r *JournalRepository) EnsureTable(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS operation_journal (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		items_processed INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		errors TEXT NOT NULL DEFAULT '[]',
		success BOOLEAN NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}

	index := `CREATE INDEX IF NOT EXISTS idx_operation_journal_finished_at ON operation_journal (finished_at)`
	if _, err := r.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create journal index: %w", err)
	}
	return nil
}

// Record inserts an entry.
func (r *JournalRepository) Record(ctx context.Context, e *Entry) error {
	if e.Errors == nil {
		e.Errors = []string{}
	}
	raw, err := json.Marshal(e.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	e.ErrorsJSON = string(raw)
	e.ErrorCount = len(e.Errors)

	query := `
		INSERT INTO operation_journal (` + entryColumns + `)
		VALUES (:id, :operation, :source, :target, :items_processed, :error_count, :errors, :success, :request_id, :started_at, :finished_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		r.logger.WithError(err).WithField("operation", e.Operation).Error("Failed to record journal entry")
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first. An empty operation matches
// every operation.
func (r *JournalRepository) ListRecent(ctx context.Context, limit int, operation string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM operation_journal`
	args := []interface{}{}
	if operation != "" {
		query += ` WHERE operation = ?`
		args = append(args, operation)
	}
	query += ` ORDER BY finished_at DESC LIMIT ?`
	args = append(args, limit)

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}

	for i := range entries {
		if err := json.Unmarshal([]byte(entries[i].ErrorsJSON), &entries[i].Errors); err != nil || entries[i].Errors == nil {
			entries[i].Errors = []string{}
		}
	}
	return entries, nil
}

// PruneOlderThan deletes entries finished before cutoff.
func (r *JournalRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM operation_journal WHERE finished_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
