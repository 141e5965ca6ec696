package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/records"
)

// DefaultReport is served for unrecognised report ids.
const DefaultReport = "default"

var (
	salesHeaders      = []string{"Receipt Number", "Date", "Customer Name", "Contact Info", "Product Type", "Quantity", "Unit Price", "Total Amount", "Payment Method", "Notes", "Created At"}
	expenseHeaders    = []string{"Expense Number", "Date", "Category", "Vendor", "Description", "Amount", "Payment Method", "Notes", "Created At"}
	dieselHeaders     = []string{"Transaction Number", "Date", "Supplier", "Liters", "Unit Price", "Total Cost", "Vehicle", "Driver", "Payment Method", "Notes", "Created At"}
	repairHeaders     = []string{"Repair Number", "Date", "Equipment", "Repair Type", "Problem Description", "Cost", "Repair Shop", "Technician", "Payment Method", "Notes", "Created At"}
	damageHeaders     = []string{"Damage Number", "Date", "Item Type", "Item Name", "Damage Cause", "Estimated Value", "Severity", "Responsible Party", "Description", "Notes", "Created At"}
	productionHeaders = []string{"Date", "Category", "Quantity", "Notes", "Created At"}
	cashFlowHeaders   = []string{"Date", "Type", "Description", "Category", "Amount"}
	inventoryHeaders  = []string{"Receipt Number", "Date", "Product Type", "Quantity", "Customer Name", "Notes"}
	materialHeaders   = []string{"Material", "Opening", "Added", "Used", "Closing"}
)

// window is the date range a report covers, relative to today.
type window func(today time.Time) records.Filter

func allTime(time.Time) records.Filter { return records.Filter{} }

func onlyToday(today time.Time) records.Filter {
	d := today.Format(models.DateLayout)
	return records.Filter{From: d, To: d}
}

func monthToDate(today time.Time) records.Filter {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	return records.Filter{From: first.Format(models.DateLayout), To: today.Format(models.DateLayout)}
}

type loader func(ctx context.Context, set *records.Set, f records.Filter) ([]models.Row, error)

// Definition describes one downloadable report.
type Definition struct {
	ID      string
	Title   string
	Prefix  string
	Headers []string
	window  window
	load    loader
}

var catalog = []Definition{
	{ID: "daily-sales", Title: "Daily Sales Report", Prefix: "sales_report", Headers: salesHeaders, window: onlyToday, load: listOf(func(s *records.Set) *records.Module { return s.Sales })},
	{ID: "monthly-sales", Title: "Monthly Sales Report", Prefix: "sales_report", Headers: salesHeaders, window: monthToDate, load: listOf(func(s *records.Set) *records.Module { return s.Sales })},
	{ID: "expense-analysis", Title: "Expense Analysis", Prefix: "expenses_report", Headers: expenseHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Expenses })},
	{ID: "diesel-report", Title: "Diesel Consumption", Prefix: "diesel_report", Headers: dieselHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Diesel })},
	{ID: "repairs-summary", Title: "Repairs Summary", Prefix: "repairs_report", Headers: repairHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Repairs })},
	{ID: "damages-report", Title: "Damages Report", Prefix: "damages_report", Headers: damageHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Damages })},
	{ID: "production-report", Title: "Production Report", Prefix: "production_report", Headers: productionHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Production })},
	{ID: "cash-flow", Title: "Cash Flow Statement", Prefix: "cash_flow_report", Headers: cashFlowHeaders, window: allTime, load: cashFlow},
	{ID: "inventory", Title: "Inventory Movement", Prefix: "inventory_report", Headers: inventoryHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Sales })},
	{ID: "materials-inventory", Title: "Materials Inventory", Prefix: "materials_report", Headers: materialHeaders, window: monthToDate, load: materials},
}

var fallback = Definition{ID: DefaultReport, Title: "Sales Report", Prefix: "report", Headers: salesHeaders, window: allTime, load: listOf(func(s *records.Set) *records.Module { return s.Sales })}

// Lookup returns the report for id, or the default sales report.
func Lookup(id string) Definition {
	for _, d := range catalog {
		if d.ID == id {
			return d
		}
	}
	return fallback
}

// Catalog lists the named reports.
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

func listOf(pick func(*records.Set) *records.Module) loader {
	return func(ctx context.Context, set *records.Set, f records.Filter) ([]models.Row, error) {
		res, err := pick(set).List(ctx, f)
		if err != nil {
			return nil, err
		}
		return rowsOf(res.Records)
	}
}

func rowsOf(recs []models.Record) ([]models.Row, error) {
	rows := make([]models.Row, 0, len(recs))
	for _, rec := range recs {
		row, err := models.ToRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cashFlow(ctx context.Context, set *records.Set, f records.Filter) ([]models.Row, error) {
	sales, err := set.Sales.List(ctx, f)
	if err != nil {
		return nil, err
	}
	expenses, err := set.Expenses.List(ctx, f)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(sales.Records)+len(expenses.Records))
	for _, rec := range sales.Records {
		s := rec.(*models.Sale)
		customer := s.CustomerName
		if customer == "" {
			customer = "Unknown"
		}
		rows = append(rows, models.Row{
			"date":        s.Date,
			"type":        "Income",
			"description": "Sale - " + customer,
			"category":    "Sales Revenue",
			"amount":      s.TotalAmount,
		})
	}
	for _, rec := range expenses.Records {
		e := rec.(*models.Expense)
		description, category := e.Description, e.Category
		if description == "" {
			description = "Expense"
		}
		if category == "" {
			category = "General"
		}
		rows = append(rows, models.Row{
			"date":        e.Date,
			"type":        "Expense",
			"description": description,
			"category":    category,
			"amount":      -e.Amount,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i]["date"].(string) > rows[j]["date"].(string)
	})
	return rows, nil
}

func materials(ctx context.Context, set *records.Set, f records.Filter) ([]models.Row, error) {
	lines, err := set.InventorySummary(ctx, f.From, f.To)
	if err != nil {
		return nil, err
	}
	rows := make([]models.Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, models.Row{
			"material_type": l.MaterialType,
			"opening":       l.Opening,
			"added":         l.Added,
			"used":          l.Used,
			"closing":       l.Closing,
		})
	}
	return rows, nil
}
