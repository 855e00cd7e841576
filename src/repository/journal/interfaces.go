package journal_repo

import (
	"context"
	"time"
)

// JournalRepositoryInterface defines the journal persistence operations
type JournalRepositoryInterface interface {
	EnsureTable(ctx context.Context) error
	Record(ctx context.Context, e *Entry) error
	ListRecent(ctx context.Context, limit int, operation string) ([]Entry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ JournalRepositoryInterface = (*JournalRepository)(nil)
