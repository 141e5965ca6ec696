package outbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/events"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/pkg/clients/supabase"
)

type flakyTables struct {
	mu       sync.Mutex
	down     map[string]bool
	refused  map[string]bool
	inserted []models.Row
}

func (f *flakyTables) Select(context.Context, string, remote.Query) ([]models.Row, error) {
	return nil, errors.New("not used")
}

func (f *flakyTables) Insert(_ context.Context, table string, row models.Row) (models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[table] {
		return nil, errors.New("503 service unavailable")
	}
	if f.refused[table] {
		return nil, &supabase.APIError{Status: http.StatusConflict, Code: "23505", Message: "duplicate key value"}
	}
	stored := models.Row{"id": float64(100 + len(f.inserted))}
	for k, v := range row {
		stored[k] = v
	}
	f.inserted = append(f.inserted, row)
	return stored, nil
}

func (f *flakyTables) Update(context.Context, string, string, models.Row) (models.Row, error) {
	return nil, errors.New("not used")
}

func (f *flakyTables) Delete(context.Context, string, string) error { return errors.New("not used") }

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func openStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFlushSyncsAndParks(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	expense, err := store.Append(ctx, "expenseEntries", remote.TableExpenses,
		models.Row{"date": "2024-03-15", "amount": 4200.0, "created_by": "clerk@starland.co"}, local.StatusPending)
	require.NoError(t, err)
	diesel, err := store.Append(ctx, "dieselEntries", remote.TableDiesel,
		models.Row{"date": "2024-03-15", "liters": 40.0}, local.StatusPending)
	require.NoError(t, err)

	tables := &flakyTables{down: map[string]bool{remote.TableDiesel: true}}
	pub := &capture{}
	svc := NewService(store, tables, pub, config.SyncConfig{MaxAttempts: 2, BatchSize: 10}, nil)

	res, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 2, Synced: 1, Failed: 1}, res)

	require.Len(t, tables.inserted, 1)
	_, hasID := tables.inserted[0]["id"]
	assert.False(t, hasID)

	got, err := store.Get(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, local.StatusSynced, got.Status)
	assert.Equal(t, "100", got.RemoteID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.RecordSynced, pub.events[0].Type)
	assert.Equal(t, "expenses", pub.events[0].Kind)
	assert.Equal(t, "100", pub.events[0].RecordID)
	assert.Equal(t, "clerk@starland.co", pub.events[0].Actor)

	res, err = svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Failed: 1, Parked: 1}, res)

	got, err = store.Get(ctx, diesel.ID)
	require.NoError(t, err)
	assert.Equal(t, local.StatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Contains(t, got.LastError, "503")

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Pending: 0, Failed: 1, Synced: 1}, status)

	backlog, err := svc.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, diesel.ID, backlog[0].ID)
}

func TestFlushIsSingleFlight(t *testing.T) {
	store := openStore(t)
	svc := NewService(store, &flakyTables{}, nil, config.SyncConfig{MaxAttempts: 3, BatchSize: 10}, nil)

	svc.mu.Lock()
	_, err := svc.Flush(context.Background())
	svc.mu.Unlock()
	assert.ErrorIs(t, err, ErrFlushInProgress)

	res, err := svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestFlushHonoursBatchSize(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, "salesEntries", remote.TableSales, models.Row{"quantity": float64(i + 1)}, local.StatusPending)
		require.NoError(t, err)
	}

	svc := NewService(store, &flakyTables{}, nil, config.SyncConfig{MaxAttempts: 3, BatchSize: 2}, nil)
	res, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Pending)
}

func TestFlushParksRefusedEntryAtOnce(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	entry, err := store.Append(ctx, "repairEntries", remote.TableRepairs, models.Row{"date": "2024-03-15"}, local.StatusPending)
	require.NoError(t, err)

	tables := &flakyTables{refused: map[string]bool{remote.TableRepairs: true}}
	svc := NewService(store, tables, nil, config.SyncConfig{MaxAttempts: 5, BatchSize: 10}, nil)

	res, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Failed: 1, Parked: 1}, res)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, local.StatusFailed, got.Status)
	assert.Contains(t, got.LastError, "23505")
}

func TestRequeueRetriesParkedEntry(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	entry, err := store.Append(ctx, "dieselEntries", remote.TableDiesel, models.Row{"liters": 40.0}, local.StatusPending)
	require.NoError(t, err)

	tables := &flakyTables{down: map[string]bool{remote.TableDiesel: true}}
	svc := NewService(store, tables, nil, config.SyncConfig{MaxAttempts: 1, BatchSize: 10}, nil)

	res, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parked)

	require.NoError(t, svc.Requeue(ctx, entry.ID))
	assert.ErrorIs(t, svc.Requeue(ctx, entry.ID), ErrNotParked)
	assert.ErrorIs(t, svc.Requeue(ctx, "missing"), ErrNotParked)

	tables.down = nil
	res, err = svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Synced: 1}, res)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, local.StatusSynced, got.Status)
}

func TestFlushAuthenticatesWithServiceKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	_, err := store.Append(ctx, "salesEntries", remote.TableSales, models.Row{"quantity": 2.0}, local.StatusPending)
	require.NoError(t, err)

	var authorization string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id": 7, "quantity": 2}]`))
	}))
	t.Cleanup(srv.Close)

	tables := remote.NewRESTTables(supabase.NewHTTPClient(srv.URL, "service-key"), "service-key", nil)
	svc := NewService(store, tables, nil, config.SyncConfig{MaxAttempts: 3, BatchSize: 10}, nil)

	res, err := svc.Flush(remote.WithAccessToken(ctx, "management-user-token"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, "Bearer service-key", authorization)
}
