package dashboard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/internal/service/records"
)

// seededTables serves fixed rows and applies date bounds.
type seededTables struct {
	rows map[string][]models.Row
	down map[string]bool
}

func (s seededTables) Select(_ context.Context, table string, q remote.Query) ([]models.Row, error) {
	if s.down[table] {
		return nil, errors.New("timeout")
	}
	var out []models.Row
	for _, row := range s.rows[table] {
		ok := true
		for _, f := range q.Filters {
			day := fmt.Sprint(row["date"])
			if (f.Op == remote.OpGte && day < f.Value) || (f.Op == remote.OpLte && day > f.Value) {
				ok = false
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (seededTables) Insert(context.Context, string, models.Row) (models.Row, error) {
	return nil, errors.New("read only")
}

func (seededTables) Update(context.Context, string, string, models.Row) (models.Row, error) {
	return nil, errors.New("read only")
}

func (seededTables) Delete(context.Context, string, string) error { return errors.New("read only") }

func newService(t *testing.T, tables seededTables) *Service {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(records.NewSet(tables, store, nil, nil), nil)
}

func fixtureRows() map[string][]models.Row {
	return map[string][]models.Row{
		remote.TableSales: {
			{"id": 1, "date": "2024-03-14", "customer_name": "Hotel Azure", "total_amount": 15000, "amount_paid": 10000, "outstanding_balance": 5000, "created_at": "2024-03-14T08:00:00Z"},
			{"id": 2, "date": "2024-03-15", "customer_name": "Mama Mboga", "total_amount": 3000, "amount_paid": 3000, "outstanding_balance": 0, "created_at": "2024-03-15T10:00:00Z"},
			{"id": 3, "date": "2024-03-15", "customer_name": "Hotel Azure ", "total_amount": 2000, "amount_paid": 0, "outstanding_balance": 2000, "created_at": "2024-03-15T11:00:00Z"},
			{"id": 4, "date": "2024-03-15", "customer_name": "School", "total_amount": 9000, "amount_paid": 0, "outstanding_balance": 9000, "created_at": "2024-03-15T07:00:00Z"},
		},
		remote.TableExpenses: {
			{"id": 1, "date": "2024-03-15", "category": "Power", "amount": 4000, "created_at": "2024-03-15T12:00:00Z"},
			{"id": 2, "date": "2024-03-10", "category": "Rent", "amount": 2000, "created_at": "2024-03-10T12:00:00Z"},
		},
		remote.TableDiesel: {
			{"id": 1, "date": "2024-03-15", "supplier": "Rubis", "liters": 40.5, "total_cost": 7298.1, "created_at": "2024-03-15T09:00:00Z"},
		},
		remote.TableRepairs: {
			{"id": 1, "date": "2024-03-12", "equipment": "Pump", "cost": 1500, "created_at": "2024-03-12T09:00:00Z"},
		},
		remote.TableDamages: {
			{"id": 1, "date": "2024-03-13", "item_name": "Jar", "estimated_value": 350, "created_at": "2024-03-13T09:00:00Z"},
		},
		remote.TableProduction: {
			{"id": 1, "date": "2024-03-15", "category": "20L", "quantity": 120, "created_at": "2024-03-15T06:00:00Z"},
		},
		remote.TableMaterialUsage: {
			{"id": 1, "date": "2024-03-15", "material_type": "Big Caps", "quantity_used": 120, "created_at": "2024-03-15T06:30:00Z"},
		},
	}
}

func TestSummarize(t *testing.T) {
	svc := newService(t, seededTables{rows: fixtureRows()})

	sum, err := svc.Summarize(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.SalesCount)
	assert.Equal(t, 29000.0, sum.TotalRevenue)
	assert.Equal(t, 13000.0, sum.TotalPaid)
	assert.Equal(t, 16000.0, sum.OutstandingBalance)
	assert.Equal(t, 7250.0, sum.AverageSale)
	assert.Equal(t, 2, sum.ExpenseCount)
	assert.Equal(t, 6000.0, sum.TotalExpenses)
	assert.Equal(t, 3000.0, sum.AverageExpense)
	assert.Equal(t, 23000.0, sum.NetIncome)
	assert.Equal(t, 7298.1, sum.DieselCost)
	assert.Equal(t, 40.5, sum.DieselLiters)
	assert.Equal(t, 1500.0, sum.RepairCost)
	assert.Equal(t, 350.0, sum.DamageValue)
	assert.Equal(t, 120.0, sum.ProductionQuantity)
	assert.Equal(t, 120.0, sum.MaterialsUsed)

	assert.Equal(t, []models.Debtor{
		{CustomerName: "School", Outstanding: 9000, Sales: 1},
		{CustomerName: "Hotel Azure", Outstanding: 7000, Sales: 2},
	}, sum.Debtors)

	require.Len(t, sum.RecentActivity, DefaultRecent)
	assert.Equal(t, "expenses", sum.RecentActivity[0].Kind)
	assert.Equal(t, "2024-03-15T12:00:00Z", sum.RecentActivity[0].CreatedAt)
	assert.Equal(t, "sales", sum.RecentActivity[1].Kind)
	assert.Equal(t, "3", sum.RecentActivity[1].ID)

	assert.Len(t, sum.Sources, len(records.Kinds))
	for kind, source := range sum.Sources {
		assert.Equal(t, records.SourceRemote, source, kind)
	}
}

func TestSummarizeEmptyPeriodHasZeroAverages(t *testing.T) {
	svc := newService(t, seededTables{rows: fixtureRows()})

	sum, err := svc.Summarize(context.Background(), Filter{From: "2023-01-01", To: "2023-01-31"})
	require.NoError(t, err)
	assert.Zero(t, sum.SalesCount)
	assert.Zero(t, sum.AverageSale)
	assert.Zero(t, sum.AverageExpense)
	assert.Empty(t, sum.Debtors)
	assert.Empty(t, sum.RecentActivity)
}

func TestSummarizeReportsLocalSource(t *testing.T) {
	svc := newService(t, seededTables{rows: fixtureRows(), down: map[string]bool{remote.TableRepairs: true}})

	sum, err := svc.Summarize(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, records.SourceLocal, sum.Sources["repairs"])
	assert.Equal(t, records.SourceRemote, sum.Sources["sales"])
	assert.Zero(t, sum.RepairCost)
}

func TestEntryDashboardCoversToday(t *testing.T) {
	svc := newService(t, seededTables{rows: fixtureRows()})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC) }

	sum, err := svc.Entry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", sum.From)
	assert.Equal(t, 3, sum.SalesCount)
	assert.Equal(t, 4000.0, sum.TotalExpenses)
	assert.Len(t, sum.RecentActivity, EntryRecent)
}

func TestSnapshot(t *testing.T) {
	svc := newService(t, seededTables{rows: fixtureRows()})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC) }

	report, err := svc.Snapshot(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", report.Date)
	assert.Equal(t, 14000.0, report.Revenue)
	assert.Equal(t, 3000.0, report.AmountPaid)
	assert.Equal(t, 11000.0, report.Outstanding)
	assert.Equal(t, 4000.0, report.Expenses)
	assert.Equal(t, 10000.0, report.NetIncome)
	assert.Equal(t, 3, report.SalesCount)
	assert.Equal(t, time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), report.CreatedAt)
}
