package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/events"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/internal/service/records"
)

var (
	// ErrFlushInProgress is returned by Flush when another flush is still running.
	ErrFlushInProgress = errors.New("sync already in progress")
	// ErrNotParked is returned by Requeue for ids that are not parked entries.
	ErrNotParked = errors.New("no parked entry with this id")
)

// Store is the part of the local store the outbox drains.
type Store interface {
	Pending(ctx context.Context, limit int) ([]local.Entry, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]local.Entry, error)
	MarkSynced(ctx context.Context, id string, remoteRow models.Row) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (local.Entry, error)
	StatusCounts(ctx context.Context) (map[string]int64, error)
	Requeue(ctx context.Context, id string) error
}

// Result summarises one flush.
type Result struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	// Parked counts entries that reached the attempt limit during this flush.
	Parked int `json:"parked"`
}

// Status reports the outbox backlog.
type Status struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
	Synced  int64 `json:"synced"`
}

// Service replays locally kept records against the remote tables.
type Service struct {
	store       Store
	tables      remote.Tables
	publisher   events.Publisher
	batchSize   int
	maxAttempts int
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewService wires the outbox. tables should authenticate with the service key.
func NewService(store Store, tables remote.Tables, publisher events.Publisher, cfg config.SyncConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:       store,
		tables:      tables,
		publisher:   publisher,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("outbox"),
	}
}

// Flush pushes one batch of pending entries with the service credentials, ignoring any caller token on ctx.
// Overlapping calls return ErrFlushInProgress.
func (s *Service) Flush(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrFlushInProgress
	}
	defer s.mu.Unlock()
	ctx = remote.WithoutAccessToken(ctx)

	entries, err := s.store.Pending(ctx, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("load pending entries: %w", err)
	}

	var res Result
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		stored, err := s.push(ctx, entry)
		if err != nil {
			res.Failed++
			limit := s.maxAttempts
			if remote.Rejected(err) {
				// A refused row fails the same way on every attempt.
				limit = 1
			}
			updated, markErr := s.store.MarkFailed(ctx, entry.ID, err, limit)
			if markErr != nil {
				return res, markErr
			}
			if updated.Status == local.StatusFailed {
				res.Parked++
				s.logger.Error("entry parked after repeated sync failures",
					zap.String("entry_id", entry.ID),
					zap.String("table", entry.Table),
					zap.Int("attempts", updated.Attempts),
					zap.Error(err))
			} else {
				s.logger.Warn("entry sync failed", zap.String("entry_id", entry.ID), zap.Error(err))
			}
			continue
		}

		if err := s.store.MarkSynced(ctx, entry.ID, stored); err != nil {
			return res, err
		}
		res.Synced++
		s.announce(ctx, entry, stored)
	}

	if res.Attempted > 0 {
		s.logger.Info("outbox flushed",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (s *Service) push(ctx context.Context, entry local.Entry) (models.Row, error) {
	row, err := entry.Row()
	if err != nil {
		return nil, err
	}
	// The local id is not a remote key.
	delete(row, "id")
	return s.tables.Insert(ctx, entry.Table, row)
}

func (s *Service) announce(ctx context.Context, entry local.Entry, stored models.Row) {
	kind := entry.Collection
	if k, ok := records.KindForTable(entry.Table); ok {
		kind = k.Name
	}
	createdBy, _ := stored["created_by"].(string)
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.RecordSynced,
		Kind:       kind,
		RecordID:   fmt.Sprint(stored["id"]),
		Actor:      createdBy,
		OccurredAt: time.Now().UTC(),
		Payload:    stored,
	})
	if err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}

// Status returns the current backlog counts.
func (s *Service) Status(ctx context.Context) (Status, error) {
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Pending: counts[local.StatusPending],
		Failed:  counts[local.StatusFailed],
		Synced:  counts[local.StatusSynced],
	}, nil
}

// Backlog lists entries still waiting for sync, pending first.
func (s *Service) Backlog(ctx context.Context) ([]local.Entry, error) {
	pending, err := s.store.ListByStatus(ctx, local.StatusPending, 0)
	if err != nil {
		return nil, err
	}
	failed, err := s.store.ListByStatus(ctx, local.StatusFailed, 0)
	if err != nil {
		return nil, err
	}
	return append(pending, failed...), nil
}

// Requeue returns a parked entry to the pending queue with a fresh attempt budget.
func (s *Service) Requeue(ctx context.Context, id string) error {
	if err := s.store.Requeue(ctx, id); err != nil {
		if errors.Is(err, local.ErrEntryNotFound) {
			return fmt.Errorf("requeue %s: %w", id, ErrNotParked)
		}
		return err
	}
	s.logger.Info("parked entry requeued", zap.String("entry_id", id))
	return nil
}
