package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
)

// Audited actions.
const (
	ActionCreate = "Create"
	ActionUpdate = "Update"
	ActionDelete = "Delete"
	ActionLogin  = "Login"
	ActionLogout = "Logout"
	ActionSync   = "Sync"
	ActionExport = "Export"
)

const apiPrefix = "/api/v1/"

// Store persists audit entries.
type Store interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
	ListAudit(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditEntry, error)
	ClearAudit(ctx context.Context) (int64, error)
}

// Query is an audit listing request. Dates are YYYY-MM-DD and inclusive.
type Query struct {
	From   string
	To     string
	User   string
	Action string
	Limit  int
}

// Filter converts the query into a store filter.
func (q Query) Filter() (models.AuditFilter, error) {
	var f models.AuditFilter
	if q.From != "" {
		from, err := models.ParseDate(q.From)
		if err != nil {
			return f, &models.ValidationError{Field: "from", Message: "from must be a date in YYYY-MM-DD format"}
		}
		f.From = from
	}
	if q.To != "" {
		to, err := models.ParseDate(q.To)
		if err != nil {
			return f, &models.ValidationError{Field: "to", Message: "to must be a date in YYYY-MM-DD format"}
		}
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	f.User = strings.TrimSpace(q.User)
	f.Action = strings.TrimSpace(q.Action)
	return f, nil
}

// Service records and queries the audit trail.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the audit trail.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Record stores entry. Failures are logged only.
func (s *Service) Record(ctx context.Context, entry models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

// List returns matching entries, newest first.
func (s *Service) List(ctx context.Context, q Query) ([]models.AuditEntry, error) {
	f, err := q.Filter()
	if err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, f, q.Limit)
}

// Clear removes every entry and returns how many were dropped.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.ClearAudit(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("audit trail cleared", zap.Int64("entries", n))
	return n, nil
}

// Audited reports whether a request should be recorded.
func Audited(method, path string) bool {
	if !strings.HasPrefix(path, apiPrefix) {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return method == http.MethodGet && (strings.HasPrefix(path, apiPrefix+"reports/") || path == apiPrefix+"audit/export")
}

// ActionFor names the action behind a request.
func ActionFor(method, path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	switch {
	case rest == "auth/login":
		return ActionLogin
	case rest == "auth/logout":
		return ActionLogout
	case rest == "sync", strings.HasPrefix(rest, "sync/"):
		return ActionSync
	case strings.HasPrefix(rest, "reports/"), rest == "audit/export":
		return ActionExport
	}
	switch method {
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionCreate
	}
}

// ModuleFor names the resource a request touches.
func ModuleFor(path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "system"
	}
	return rest
}
