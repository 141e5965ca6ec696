package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starland/ledger/internal/domain/models"
)

// AuditLog is the persisted form of models.AuditEntry.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"column:occurred_at;index;not null"`
	User      string    `gorm:"column:user_email;size:255;index"`
	Action    string    `gorm:"size:64;index"`
	Module    string    `gorm:"size:64"`
	Details   string    `gorm:"type:text"`
	IPAddress string    `gorm:"size:64"`
	Status    string    `gorm:"size:16"`
}

// UserMirror caches known accounts for listing while the backend is unreachable.
type UserMirror struct {
	ID        string `gorm:"primaryKey;size:64"`
	Email     string `gorm:"size:255;index"`
	Name      string `gorm:"size:255"`
	Role      string `gorm:"size:32"`
	Status    string `gorm:"size:16"`
	LastLogin *time.Time
	UpdatedAt time.Time
}

// AppendAudit stores an audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	log := AuditLog{
		Timestamp: entry.Timestamp.UTC(),
		User:      entry.User,
		Action:    entry.Action,
		Module:    entry.Module,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		Status:    entry.Status,
	}
	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns matching audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditEntry, error) {
	q := s.db.WithContext(ctx).Model(&AuditLog{})
	if !filter.From.IsZero() {
		q = q.Where("occurred_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("occurred_at <= ?", filter.To.UTC())
	}
	if filter.User != "" {
		q = q.Where("LOWER(user_email) LIKE ?", "%"+strings.ToLower(filter.User)+"%")
	}
	if filter.Action != "" {
		q = q.Where("LOWER(action) LIKE ?", "%"+strings.ToLower(filter.Action)+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var logs []AuditLog
	if err := q.Order("occurred_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	out := make([]models.AuditEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, models.AuditEntry{
			ID:        l.ID,
			Timestamp: l.Timestamp,
			User:      l.User,
			Action:    l.Action,
			Module:    l.Module,
			Details:   l.Details,
			IPAddress: l.IPAddress,
			Status:    l.Status,
		})
	}
	return out, nil
}

// ClearAudit removes every audit entry and returns how many were deleted.
func (s *Store) ClearAudit(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear audit entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SaveUsers upserts account mirrors.
func (s *Store) SaveUsers(ctx context.Context, users ...models.User) error {
	if len(users) == 0 {
		return nil
	}
	mirrors := make([]UserMirror, 0, len(users))
	for _, u := range users {
		mirrors = append(mirrors, UserMirror{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Role:      string(u.Role),
			Status:    u.Status,
			LastLogin: u.LastLogin,
		})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "role", "status", "updated_at"}),
	}).Create(&mirrors).Error
	if err != nil {
		return fmt.Errorf("save user mirrors: %w", err)
	}
	return nil
}

// TouchLogin records a successful sign-in, creating the mirror when needed.
func (s *Store) TouchLogin(ctx context.Context, user models.User, at time.Time) error {
	at = at.UTC()
	mirror := UserMirror{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		Status:    models.UserActive,
		LastLogin: &at,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "role", "last_login", "updated_at"}),
	}).Create(&mirror).Error
	if err != nil {
		return fmt.Errorf("touch login for %s: %w", user.Email, err)
	}
	return nil
}

// ListUsers returns mirrored accounts ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var mirrors []UserMirror
	if err := s.db.WithContext(ctx).Order("email ASC").Find(&mirrors).Error; err != nil {
		return nil, fmt.Errorf("list user mirrors: %w", err)
	}
	out := make([]models.User, 0, len(mirrors))
	for _, m := range mirrors {
		out = append(out, models.User{
			ID:        m.ID,
			Email:     m.Email,
			Name:      m.Name,
			Role:      models.Role(m.Role),
			Status:    m.Status,
			LastLogin: m.LastLogin,
		})
	}
	return out, nil
}
