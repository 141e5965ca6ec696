package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/events"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/repository/remote"
)

// Sources of a listing.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// SyncWarning is returned to the user when a record could only be stored locally.
const SyncWarning = "Data saved locally, but failed to sync to cloud. Please check your connection."

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrImmutable is returned when updating or deleting an insert-only kind.
	ErrImmutable = errors.New("records of this kind cannot be changed")
)

// LocalStore is the subset of the local store used by record modules.
type LocalStore interface {
	Append(ctx context.Context, collection, table string, row models.Row, status string) (local.Entry, error)
	List(ctx context.Context, collection string) ([]local.Entry, error)
	ReplaceRemote(ctx context.Context, collection, table string, row models.Row) error
	DeleteRemote(ctx context.Context, collection, remoteID string) error
}

// Filter narrows a listing by business date (inclusive, YYYY-MM-DD).
type Filter struct {
	From  string
	To    string
	Limit int
}

// Validate checks the date bounds.
func (f Filter) Validate() error {
	for field, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := models.ParseDate(v); err != nil {
			return &models.ValidationError{Field: field, Message: field + " must be a date in YYYY-MM-DD format"}
		}
	}
	return nil
}

func (f Filter) includes(day string) bool {
	if f.From == "" && f.To == "" {
		return true
	}
	d, err := models.ParseDate(day)
	if err != nil {
		return false
	}
	if f.From != "" {
		if from, err := models.ParseDate(f.From); err == nil && d.Before(from) {
			return false
		}
	}
	if f.To != "" {
		if to, err := models.ParseDate(f.To); err == nil && d.After(to) {
			return false
		}
	}
	return true
}

// SaveResult reports where a new record ended up.
type SaveResult struct {
	Record  models.Record
	Synced  bool
	Warning string
	// LocalID identifies the outbox entry when the record is not yet synced.
	LocalID string
}

// ListResult is a date-descending listing and the store that served it.
type ListResult struct {
	Records []models.Record
	Source  string
}

// Module saves and loads one kind of record.
type Module struct {
	kind      Kind
	tables    remote.Tables
	store     LocalStore
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewModule wires a record module.
func NewModule(kind Kind, tables remote.Tables, store LocalStore, publisher events.Publisher, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Module{
		kind:      kind,
		tables:    tables,
		store:     store,
		publisher: publisher,
		logger:    logger.With(zap.String("kind", kind.Name)),
		now:       time.Now,
	}
}

// Kind returns the module configuration.
func (m *Module) Kind() Kind { return m.kind }

// Save stamps, derives, validates and stores rec. When the remote is unreachable the record is kept in the
// local outbox; a refusal by the remote is returned as is.
func (m *Module) Save(ctx context.Context, actor models.User, rec models.Record) (SaveResult, error) {
	now := m.now()
	rec.SetID("")
	rec.Meta().Stamp(actor.Email, actor.Name, now)
	rec.Derive(now)
	if err := rec.Validate(); err != nil {
		return SaveResult{}, err
	}

	row, err := models.ToRow(rec)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", m.kind.Name, err)
	}

	stored, err := m.tables.Insert(ctx, m.kind.Table, row)
	if remote.Rejected(err) {
		m.logger.Info("remote insert rejected", zap.String("table", m.kind.Table), zap.Error(err))
		return SaveResult{}, fmt.Errorf("save %s: %w", m.kind.Name, err)
	}
	if err != nil {
		m.logger.Warn("remote insert failed, keeping record locally", zap.String("table", m.kind.Table), zap.Error(err))

		entry, localErr := m.store.Append(ctx, m.kind.LocalKey, m.kind.Table, row, local.StatusPending)
		if localErr != nil {
			return SaveResult{}, fmt.Errorf("save %s: %w", m.kind.Name, errors.Join(err, localErr))
		}
		return SaveResult{Record: rec, Warning: SyncWarning, LocalID: entry.ID}, nil
	}

	out := m.kind.New()
	if err := models.FromRow(stored, out); err != nil {
		m.logger.Warn("stored row could not be decoded", zap.Error(err))
		out = rec
	}

	if _, err := m.store.Append(ctx, m.kind.LocalKey, m.kind.Table, stored, local.StatusSynced); err != nil {
		m.logger.Warn("local mirror write failed", zap.Error(err))
	}

	m.publish(ctx, events.RecordCreated, out, actor.Email, stored)
	return SaveResult{Record: out, Synced: true}, nil
}

// List returns records within f, newest business date first. Remote errors fall back to the local store.
func (m *Module) List(ctx context.Context, f Filter) (ListResult, error) {
	if err := f.Validate(); err != nil {
		return ListResult{}, err
	}

	q := remote.Query{Limit: f.Limit}.OrderBy("date", true).OrderBy("created_at", true)
	if f.From != "" {
		q = q.Where("date", remote.OpGte, f.From)
	}
	if f.To != "" {
		q = q.Where("date", remote.OpLte, f.To)
	}

	source := SourceRemote
	rows, err := m.tables.Select(ctx, m.kind.Table, q)
	if err != nil {
		m.logger.Warn("remote query failed, using local records", zap.String("table", m.kind.Table), zap.Error(err))
		rows, err = m.localRows(ctx)
		if err != nil {
			return ListResult{}, fmt.Errorf("list %s: %w", m.kind.Name, err)
		}
		source = SourceLocal
	}

	recs := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec := m.kind.New()
		if err := models.FromRow(row, rec); err != nil {
			m.logger.Warn("skipping undecodable row", zap.Error(err))
			continue
		}
		if source == SourceLocal && !f.includes(rec.Day()) {
			continue
		}
		recs = append(recs, rec)
	}

	SortByDateDesc(recs)
	if f.Limit > 0 && len(recs) > f.Limit {
		recs = recs[:f.Limit]
	}
	return ListResult{Records: recs, Source: source}, nil
}

func (m *Module) localRows(ctx context.Context) ([]models.Row, error) {
	entries, err := m.store.List(ctx, m.kind.LocalKey)
	if err != nil {
		return nil, err
	}
	rows := make([]models.Row, 0, len(entries))
	for _, e := range entries {
		row, err := e.Row()
		if err != nil {
			m.logger.Warn("skipping corrupt local entry", zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Get returns the record with id, looking locally when the remote is unreachable.
func (m *Module) Get(ctx context.Context, id string) (models.Record, error) {
	rows, err := m.tables.Select(ctx, m.kind.Table, remote.Query{Limit: 1}.Where("id", remote.OpEq, id))
	if err != nil {
		m.logger.Warn("remote lookup failed, using local records", zap.String("id", id), zap.Error(err))
		if rows, err = m.localRows(ctx); err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", m.kind.Name, id, err)
		}
	}

	for _, row := range rows {
		rec := m.kind.New()
		if err := models.FromRow(row, rec); err != nil {
			continue
		}
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// Update replaces the editable fields of record id. Attribution is kept from the stored record.
func (m *Module) Update(ctx context.Context, actor models.User, id string, rec models.Record) (models.Record, error) {
	if !m.kind.Mutable {
		return nil, ErrImmutable
	}

	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	*rec.Meta() = *current.Meta()
	rec.SetID("")
	rec.Derive(m.now())
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	patch, err := models.ToRow(rec)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", m.kind.Name, id, err)
	}

	stored, err := m.tables.Update(ctx, m.kind.Table, id, patch)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", m.kind.Name, id, err)
	}

	out := m.kind.New()
	if err := models.FromRow(stored, out); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", m.kind.Name, id, err)
	}

	if err := m.store.ReplaceRemote(ctx, m.kind.LocalKey, m.kind.Table, stored); err != nil {
		m.logger.Warn("local mirror refresh failed", zap.String("id", id), zap.Error(err))
	}

	m.publish(ctx, events.RecordUpdated, out, actor.Email, stored)
	return out, nil
}

// Delete removes record id.
func (m *Module) Delete(ctx context.Context, actor models.User, id string) error {
	if !m.kind.Mutable {
		return ErrImmutable
	}

	err := m.tables.Delete(ctx, m.kind.Table, id)
	if errors.Is(err, remote.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", m.kind.Name, id, err)
	}

	if err := m.store.DeleteRemote(ctx, m.kind.LocalKey, id); err != nil {
		m.logger.Warn("local mirror delete failed", zap.String("id", id), zap.Error(err))
	}

	m.emit(ctx, events.Event{Type: events.RecordDeleted, RecordID: id, Actor: actor.Email})
	return nil
}

func (m *Module) publish(ctx context.Context, t events.Type, rec models.Record, actor string, payload models.Row) {
	m.emit(ctx, events.Event{Type: t, RecordID: rec.ID(), Actor: actor, Payload: payload})
}

func (m *Module) emit(ctx context.Context, event events.Event) {
	event.Kind = m.kind.Name
	event.OccurredAt = m.now().UTC()
	err := m.publisher.Publish(ctx, event)
	if err != nil {
		m.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// SortByDateDesc orders records by business date, newest first. Ties keep their order.
func SortByDateDesc(recs []models.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return dayOf(recs[i]).After(dayOf(recs[j]))
	})
}

func dayOf(rec models.Record) time.Time {
	d, err := models.ParseDate(rec.Day())
	if err != nil {
		return time.Time{}
	}
	return d
}
