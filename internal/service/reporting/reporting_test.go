package reporting

import (
	"bytes"
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

type staticTables map[string][]models.Row

func (s staticTables) Select(_ context.Context, table string, q remote.Query) ([]models.Row, error) {
	var out []models.Row
	for _, row := range s[table] {
		day := fmt.Sprint(row["date"])
		keep := true
		for _, f := range q.Filters {
			if (f.Op == remote.OpGte && day < f.Value) || (f.Op == remote.OpLte && day > f.Value) {
				keep = false
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func (staticTables) Insert(context.Context, string, models.Row) (models.Row, error) {
	return nil, errors.New("read only")
}

func (staticTables) Update(context.Context, string, string, models.Row) (models.Row, error) {
	return nil, errors.New("read only")
}

func (staticTables) Delete(context.Context, string, string) error { return errors.New("read only") }

var reportDay = time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC)

func newReportService(t *testing.T, tables staticTables, archivers ...Archiver) *Service {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(records.NewSet(tables, store, nil, nil), time.UTC, nil, archivers...)
	svc.now = func() time.Time { return reportDay }
	return svc
}

func sampleTables() staticTables {
	return staticTables{
		remote.TableSales: {
			{"id": 1, "receipt_number": "RCP-1", "date": "2024-03-15", "customer_name": "Mama Mboga", "product_type": "20L", "quantity": 5, "unit_price": 3000, "total_amount": 15000, "created_at": "2024-03-15T08:00:00Z"},
			{"id": 2, "receipt_number": "RCP-2", "date": "2024-03-02", "customer_name": "Hotel Azure", "product_type": "5L", "quantity": 10, "unit_price": 200, "total_amount": 2000, "created_at": "2024-03-02T08:00:00Z"},
			{"id": 3, "receipt_number": "RCP-3", "date": "2024-02-20", "customer_name": "School", "product_type": "20L", "quantity": 1, "unit_price": 300, "total_amount": 300, "created_at": "2024-02-20T08:00:00Z"},
		},
		remote.TableExpenses: {
			{"id": 1, "date": "2024-03-10", "category": "Power", "description": "Bill, March", "amount": 4000},
		},
	}
}

func TestEncodeCSVEscapesValues(t *testing.T) {
	table := Table{
		Headers: []string{"Customer Name", "Notes", "Quantity", "Unit Price"},
		Rows: []models.Row{
			{"customer_name": "Otieno, J.", "notes": `said "deliver early"`, "quantity": 0.0},
			{"customer_name": "Plain", "notes": "line one\nline two", "quantity": 12.5, "unit_price": 3000.0},
		},
	}

	want := "Customer Name,Notes,Quantity,Unit Price\n" +
		`"Otieno, J.","said ""deliver early""",0,` + "\n" +
		"Plain,\"line one\nline two\",12.5,3000\n"
	assert.Equal(t, want, string(EncodeCSV(table)))
	assert.Equal(t, EncodeCSV(table), EncodeCSV(table))
}

func TestFieldFor(t *testing.T) {
	assert.Equal(t, "total_amount", FieldFor("Total Amount"))
	assert.Equal(t, "outstanding_balance", FieldFor("Outstanding"))
	assert.Equal(t, "material_type", FieldFor("Material"))
	assert.Equal(t, "payment_status", FieldFor("Payment Status"))
}

func TestRenderDailySales(t *testing.T) {
	svc := newReportService(t, sampleTables())

	doc, err := svc.Render(context.Background(), "daily-sales", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "sales_report_2024-03-15.csv", doc.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", doc.ContentType)
	assert.Equal(t,
		"Receipt Number,Date,Customer Name,Contact Info,Product Type,Quantity,Unit Price,Total Amount,Payment Method,Notes,Created At\n"+
			"RCP-1,2024-03-15,Mama Mboga,,20L,5,3000,15000,,,2024-03-15T08:00:00Z\n",
		string(doc.Body))
}

func TestRenderMonthlySalesCoversMonthToDate(t *testing.T) {
	svc := newReportService(t, sampleTables())

	table, err := svc.Build(context.Background(), "monthly-sales")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "RCP-1", table.Rows[0]["receipt_number"])
	assert.Equal(t, "RCP-2", table.Rows[1]["receipt_number"])
}

func TestCashFlowReport(t *testing.T) {
	svc := newReportService(t, sampleTables())

	doc, err := svc.Render(context.Background(), "cash-flow", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "cash_flow_report_2024-03-15.csv", doc.Filename)
	assert.Equal(t,
		"Date,Type,Description,Category,Amount\n"+
			"2024-03-15,Income,Sale - Mama Mboga,Sales Revenue,15000\n"+
			"2024-03-10,Expense,\"Bill, March\",Power,-4000\n"+
			"2024-03-02,Income,Sale - Hotel Azure,Sales Revenue,2000\n"+
			"2024-02-20,Income,Sale - School,Sales Revenue,300\n",
		string(doc.Body))
}

func TestUnknownReportFallsBackToSales(t *testing.T) {
	svc := newReportService(t, sampleTables())

	doc, err := svc.Render(context.Background(), "quarterly-tax", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "report_2024-03-15.csv", doc.Filename)
	assert.Equal(t, DefaultReport, doc.Table.ID)
	assert.Len(t, doc.Table.Rows, 3)
}

func TestMaterialsInventoryReport(t *testing.T) {
	tables := staticTables{
		remote.TableMaterialPurchases: {{"id": 1, "date": "2024-03-05", "material_type": "Plastic", "quantity_added": 40}},
		remote.TableMaterialUsage:     {{"id": 1, "date": "2024-03-06", "material_type": "Plastic", "quantity_used": 15}},
	}
	svc := newReportService(t, tables)

	table, err := svc.Build(context.Background(), "materials-inventory")
	require.NoError(t, err)
	require.Len(t, table.Rows, len(models.Materials))
	assert.Equal(t, []string{"Plastic", "0", "40", "15", "25"}, table.Cells()[4])
}

func TestBinaryFormats(t *testing.T) {
	svc := newReportService(t, sampleTables())

	pdf, err := svc.Render(context.Background(), "monthly-sales", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "sales_report_2024-03-15.pdf", pdf.Filename)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))

	xlsx, err := svc.Render(context.Background(), "monthly-sales", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "sales_report_2024-03-15.xlsx", xlsx.Filename)
	assert.True(t, bytes.HasPrefix(xlsx.Body, []byte("PK")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestAuditDocument(t *testing.T) {
	svc := newReportService(t, staticTables{})

	doc := svc.AuditDocument([]models.AuditEntry{{
		Timestamp: time.Date(2024, 3, 15, 7, 45, 30, 0, time.UTC),
		User:      "manager@starland.co",
		Action:    "Export",
		Module:    "reports",
		Details:   `GET /api/v1/reports/"cash-flow"`,
		IPAddress: "192.168.1.101",
		Status:    models.AuditSuccess,
	}})

	assert.Equal(t, "audit-logs-2024-03-15.csv", doc.Filename)
	assert.Equal(t,
		"Timestamp,User,Action,Module,Details,IP Address,Status\n"+
			`"2024-03-15 07:45:30","manager@starland.co","Export","reports","GET /api/v1/reports/cash-flow","192.168.1.101","success"`+"\n",
		string(doc.Body))
}

type memArchiver struct {
	docs []Document
	err  error
}

func (m *memArchiver) Archive(_ context.Context, doc Document) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.docs = append(m.docs, doc)
	return "mem://" + doc.Filename, nil
}

func TestArchive(t *testing.T) {
	ok := &memArchiver{}
	broken := &memArchiver{err: errors.New("bucket missing")}
	svc := newReportService(t, sampleTables(), ok, broken)

	locations, err := svc.Archive(context.Background(), "expense-analysis", FormatCSV)
	assert.ErrorContains(t, err, "bucket missing")
	assert.Equal(t, []string{"mem://expenses_report_2024-03-15.csv"}, locations)
	require.Len(t, ok.docs, 1)

	_, err = newReportService(t, sampleTables()).Archive(context.Background(), "expense-analysis", FormatCSV)
	assert.ErrorIs(t, err, ErrNoArchive)
}

type memSheets struct {
	tab  string
	rows [][]interface{}
}

func (m *memSheets) AppendRows(_ context.Context, tab string, rows [][]interface{}) error {
	m.tab, m.rows = tab, rows
	return nil
}

func TestSheetsArchiverWritesHeaderFirst(t *testing.T) {
	repo := &memSheets{}
	loc, err := NewSheetsArchiver(repo).Archive(context.Background(), Document{Table: Table{
		ID:      "cash-flow",
		Headers: []string{"Date", "Amount"},
		Rows:    []models.Row{{"date": "2024-03-15", "amount": 15000.0}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "sheets:cash-flow", loc)
	assert.Equal(t, "cash-flow", repo.tab)
	assert.Equal(t, [][]interface{}{{"Date", "Amount"}, {"2024-03-15", 15000.0}}, repo.rows)
}
