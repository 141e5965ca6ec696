package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/records"
)

// Recent activity sizes for the two dashboards.
const (
	DefaultRecent = 10
	EntryRecent   = 5
)

// Filter selects the period summarised. Recent bounds the activity feed.
type Filter struct {
	From   string
	To     string
	Recent int
}

// Service aggregates record listings into dashboard figures.
type Service struct {
	records *records.Set
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the aggregator.
func NewService(set *records.Set, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: set, logger: logger, now: time.Now}
}

// Summarize loads every kind concurrently and computes the summary.
func (s *Service) Summarize(ctx context.Context, f Filter) (models.Summary, error) {
	if f.Recent <= 0 {
		f.Recent = DefaultRecent
	}
	window := records.Filter{From: f.From, To: f.To}
	if err := window.Validate(); err != nil {
		return models.Summary{}, err
	}

	modules := s.records.All()
	results := make([]records.ListResult, len(modules))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range modules {
		i, m := i, m
		g.Go(func() error {
			res, err := m.List(gctx, window)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", m.Kind().Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Summary{}, err
	}

	summary := models.Summary{From: f.From, To: f.To, Sources: map[string]string{}}
	var activity []models.Activity
	for i, m := range modules {
		summary.Sources[m.Kind().Name] = results[i].Source
		for _, rec := range results[i].Records {
			activity = append(activity, activityOf(m.Kind().Name, rec))
		}
	}

	accumulate(&summary, results)
	summary.RecentActivity = recent(activity, f.Recent)
	return summary, nil
}

// Entry summarises today's activity for data entry users.
func (s *Service) Entry(ctx context.Context) (models.Summary, error) {
	today := s.now().Format(models.DateLayout)
	return s.Summarize(ctx, Filter{From: today, To: today, Recent: EntryRecent})
}

// Snapshot summarises a single day for archiving.
func (s *Service) Snapshot(ctx context.Context, day time.Time) (models.DailyReport, error) {
	date := day.Format(models.DateLayout)
	sum, err := s.Summarize(ctx, Filter{From: date, To: date})
	if err != nil {
		return models.DailyReport{}, err
	}
	return models.DailyReport{
		Date:               date,
		Revenue:            sum.TotalRevenue,
		AmountPaid:         sum.TotalPaid,
		Outstanding:        sum.OutstandingBalance,
		Expenses:           sum.TotalExpenses,
		NetIncome:          sum.NetIncome,
		DieselCost:         sum.DieselCost,
		RepairCost:         sum.RepairCost,
		DamageValue:        sum.DamageValue,
		ProductionQuantity: sum.ProductionQuantity,
		SalesCount:         sum.SalesCount,
		CreatedAt:          s.now().UTC(),
	}, nil
}

func accumulate(sum *models.Summary, results []records.ListResult) {
	debtors := map[string]*models.Debtor{}

	for _, res := range results {
		for _, rec := range res.Records {
			switch r := rec.(type) {
			case *models.Sale:
				sum.SalesCount++
				sum.TotalRevenue = models.Sum(sum.TotalRevenue, r.TotalAmount)
				sum.TotalPaid = models.Sum(sum.TotalPaid, r.AmountPaid)
				sum.OutstandingBalance = models.Sum(sum.OutstandingBalance, r.OutstandingBalance)
				if r.OutstandingBalance > 0 {
					name := strings.TrimSpace(r.CustomerName)
					d, ok := debtors[name]
					if !ok {
						d = &models.Debtor{CustomerName: name}
						debtors[name] = d
					}
					d.Outstanding = models.Sum(d.Outstanding, r.OutstandingBalance)
					d.Sales++
				}
			case *models.Expense:
				sum.ExpenseCount++
				sum.TotalExpenses = models.Sum(sum.TotalExpenses, r.Amount)
			case *models.DieselPurchase:
				sum.DieselCost = models.Sum(sum.DieselCost, r.TotalCost)
				sum.DieselLiters = models.Sum(sum.DieselLiters, r.Liters)
			case *models.Repair:
				sum.RepairCost = models.Sum(sum.RepairCost, r.Cost)
			case *models.Damage:
				sum.DamageValue = models.Sum(sum.DamageValue, r.EstimatedValue)
			case *models.ProductionRecord:
				sum.ProductionQuantity = models.Sum(sum.ProductionQuantity, r.Quantity)
			case *models.MaterialUsage:
				sum.MaterialsUsed = models.Sum(sum.MaterialsUsed, r.QuantityUsed)
			}
		}
	}

	sum.AverageSale = models.Div(sum.TotalRevenue, float64(sum.SalesCount))
	sum.AverageExpense = models.Div(sum.TotalExpenses, float64(sum.ExpenseCount))
	sum.NetIncome = models.Sub(sum.TotalRevenue, sum.TotalExpenses)

	sum.Debtors = make([]models.Debtor, 0, len(debtors))
	for _, d := range debtors {
		sum.Debtors = append(sum.Debtors, *d)
	}
	sort.Slice(sum.Debtors, func(i, j int) bool {
		if sum.Debtors[i].Outstanding != sum.Debtors[j].Outstanding {
			return sum.Debtors[i].Outstanding > sum.Debtors[j].Outstanding
		}
		return sum.Debtors[i].CustomerName < sum.Debtors[j].CustomerName
	})
}

func activityOf(kind string, rec models.Record) models.Activity {
	meta := rec.Meta()
	return models.Activity{
		Kind:        kind,
		ID:          rec.ID(),
		Date:        rec.Day(),
		CreatedAt:   meta.CreatedAt,
		CreatedBy:   meta.CreatedBy,
		Description: rec.Headline(),
		Amount:      rec.Value(),
	}
}

func recent(activity []models.Activity, n int) []models.Activity {
	created := make([]time.Time, len(activity))
	for i := range activity {
		t, err := time.Parse(time.RFC3339Nano, activity[i].CreatedAt)
		if err != nil {
			t, _ = models.ParseDate(activity[i].Date)
		}
		created[i] = t
	}

	idx := make([]int, len(activity))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return created[idx[a]].After(created[idx[b]]) })

	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]models.Activity, 0, len(idx))
	for _, i := range idx {
		out = append(out, activity[i])
	}
	return out
}
