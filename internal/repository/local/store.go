package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/starland/ledger/internal/domain/models"
)

// Entry statuses.
const (
	StatusSynced  = "synced"
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// ErrEntryNotFound is returned when a local entry id is unknown.
var ErrEntryNotFound = errors.New("local entry not found")

// Entry is a locally kept copy of a record, doubling as an outbox item until synced.
type Entry struct {
	ID         string `gorm:"primaryKey;size:36"`
	Collection string `gorm:"index;size:64;not null"`
	Table      string `gorm:"column:table_name;size:64;not null"`
	RemoteID   string `gorm:"index;size:64"`
	Payload    string `gorm:"type:text;not null"`
	Status     string `gorm:"index;size:16;not null"`
	Attempts   int
	LastError  string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncedAt   *time.Time
}

// TableName implements gorm's tabler interface.
func (Entry) TableName() string { return "local_entries" }

// Row decodes the payload. The id column carries the remote id, or the local id while unsynced.
func (e Entry) Row() (models.Row, error) {
	row := models.Row{}
	if err := json.Unmarshal([]byte(e.Payload), &row); err != nil {
		return nil, fmt.Errorf("decode local entry %s: %w", e.ID, err)
	}
	if e.RemoteID != "" {
		row["id"] = e.RemoteID
	} else {
		row["id"] = e.ID
	}
	return row, nil
}

// Store is the embedded sqlite store.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open creates (or reuses) the sqlite database at path and migrates its schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create local store directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access local store handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}, &AuditLog{}, &UserMirror{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	logger.Info("local store ready", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func remoteIDOf(row models.Row) string {
	v, ok := row["id"]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

// Append stores row under collection with the given status.
func (s *Store) Append(ctx context.Context, collection, table string, row models.Row, status string) (Entry, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s entry: %w", collection, err)
	}

	entry := Entry{
		ID:         uuid.NewString(),
		Collection: collection,
		Table:      table,
		RemoteID:   remoteIDOf(row),
		Payload:    string(payload),
		Status:     status,
	}
	if status == StatusSynced {
		now := s.now()
		entry.SyncedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Entry{}, fmt.Errorf("append %s entry: %w", collection, err)
	}
	return entry, nil
}

// List returns every entry of a collection, oldest first.
func (s *Store) List(ctx context.Context, collection string) ([]Entry, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC, rowid ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", collection, err)
	}
	return entries, nil
}

// Get returns one entry by local id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entry, nil
}

// ListByStatus returns up to limit entries in status, oldest first. A non-positive limit means all.
func (s *Store) ListByStatus(ctx context.Context, status string, limit int) ([]Entry, error) {
	q := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC, rowid ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list %s entries: %w", status, err)
	}
	return entries, nil
}

// Pending returns the next batch awaiting sync.
func (s *Store) Pending(ctx context.Context, limit int) ([]Entry, error) {
	return s.ListByStatus(ctx, StatusPending, limit)
}

// MarkSynced records a successful remote insert.
func (s *Store) MarkSynced(ctx context.Context, id string, remoteRow models.Row) error {
	updates := map[string]any{
		"status":     StatusSynced,
		"remote_id":  remoteIDOf(remoteRow),
		"last_error": "",
		"synced_at":  s.now(),
	}
	if remoteRow != nil {
		payload, err := json.Marshal(remoteRow)
		if err != nil {
			return fmt.Errorf("encode synced row: %w", err)
		}
		updates["payload"] = string(payload)
	}

	res := s.db.WithContext(ctx).Model(&Entry{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark entry %s synced: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// MarkFailed records a failed attempt. The entry is parked as failed once attempts reach maxAttempts.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		entry.Attempts++
		if cause != nil {
			entry.LastError = cause.Error()
		}
		if maxAttempts > 0 && entry.Attempts >= maxAttempts {
			entry.Status = StatusFailed
		}
		return tx.Save(&entry).Error
	})
	if err != nil {
		return Entry{}, fmt.Errorf("mark entry %s failed: %w", id, err)
	}
	return entry, nil
}

// Requeue moves a failed entry back to pending with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Entry{}).
		Where("id = ? AND status = ?", id, StatusFailed).
		Updates(map[string]any{"status": StatusPending, "attempts": 0})
	if res.Error != nil {
		return fmt.Errorf("requeue entry %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ReplaceRemote refreshes the local copy of a remote row, appending one if none exists.
func (s *Store) ReplaceRemote(ctx context.Context, collection, table string, row models.Row) error {
	remoteID := remoteIDOf(row)
	if remoteID == "" {
		return errors.New("replace remote copy: row has no id")
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", collection, err)
	}

	res := s.db.WithContext(ctx).Model(&Entry{}).
		Where("collection = ? AND remote_id = ?", collection, remoteID).
		Update("payload", string(payload))
	if res.Error != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, remoteID, res.Error)
	}
	if res.RowsAffected == 0 {
		_, err := s.Append(ctx, collection, table, row, StatusSynced)
		return err
	}
	return nil
}

// DeleteRemote drops the local copy of a remote row.
func (s *Store) DeleteRemote(ctx context.Context, collection, remoteID string) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND remote_id = ?", collection, remoteID).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, remoteID, err)
	}
	return nil
}

// StatusCounts returns the number of entries per status.
func (s *Store) StatusCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	counts := map[string]int64{StatusSynced: 0, StatusPending: 0, StatusFailed: 0}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
