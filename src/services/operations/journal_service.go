package operations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nas-ai/uploads-api/src/domain/files"
	journal_repo "github.com/nas-ai/uploads-api/src/repository/journal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultJournalLimit = 50
	MaxJournalLimit     = 500
)

// JournalService appends finished operations to the journal. A nil
// *JournalService is valid and records nothing, which is how a disabled
// journal is represented.
type JournalService struct {
	repo   journal_repo.JournalRepositoryInterface
	logger *logrus.Logger
	now    func() time.Time
}

func NewJournalService(repo journal_repo.JournalRepositoryInterface, logger *logrus.Logger) *JournalService {
	return &JournalService{repo: repo, logger: logger, now: time.Now}
}

// Enabled reports whether entries are persisted.
func (s *JournalService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Init creates the journal table.
func (s *JournalService) Init(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.repo.EnsureTable(ctx)
}

// RecordTree journals a tree operation result.
func (s *JournalService) RecordTree(ctx context.Context, result *files.TreeResult, source, target, requestID string, started time.Time) {
	if result == nil {
		return
	}
	s.Record(ctx, result.Operation, source, target, result.ItemsProcessed, result.Errors, result.Success(), requestID, started)
}

// Record journals one operation. Failures are logged and never surface to
// the caller; the operation itself already happened.
func (s *JournalService) Record(ctx context.Context, operation, source, target string, processed int, errs []string, success bool, requestID string, started time.Time) {
	if !s.Enabled() {
		return
	}

	entry := &journal_repo.Entry{
		ID:             uuid.New().String(),
		Operation:      operation,
		Source:         source,
		Target:         target,
		ItemsProcessed: processed,
		Errors:         append([]string{}, errs...),
		Success:        success,
		RequestID:      requestID,
		StartedAt:      started.UTC(),
		FinishedAt:     s.now().UTC(),
	}

	if err := s.repo.Record(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"operation":  operation,
			"request_id": requestID,
		}).Warn("Journal entry dropped")
	}
}

// Recent lists the newest entries, optionally filtered by operation.
func (s *JournalService) Recent(ctx context.Context, limit int, operation string) ([]journal_repo.Entry, error) {
	if !s.Enabled() {
		return []journal_repo.Entry{}, nil
	}
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	if limit > MaxJournalLimit {
		limit = MaxJournalLimit
	}
	return s.repo.ListRecent(ctx, limit, operation)
}

// Prune removes entries older than retentionDays.
func (s *JournalService) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if !s.Enabled() || retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	n, err := s.repo.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"removed":        n,
		"retention_days": retentionDays,
	}).Info("Journal pruned")
	return n, nil
}
