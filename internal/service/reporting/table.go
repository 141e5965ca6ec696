package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starland/ledger/internal/domain/models"
)

// columns maps report headers to row fields. Headers not listed use their snake_cased text.
var columns = map[string]string{
	"Receipt Number":      "receipt_number",
	"Date":                "date",
	"Customer Name":       "customer_name",
	"Contact Info":        "contact_info",
	"Product Type":        "product_type",
	"Quantity":            "quantity",
	"Unit Price":          "unit_price",
	"Total Amount":        "total_amount",
	"Amount Paid":         "amount_paid",
	"Outstanding":         "outstanding_balance",
	"Payment Method":      "payment_method",
	"Notes":               "notes",
	"Created At":          "created_at",
	"Created By":          "created_by",
	"Expense Number":      "expense_number",
	"Category":            "category",
	"Vendor":              "vendor",
	"Description":         "description",
	"Amount":              "amount",
	"Transaction Number":  "transaction_number",
	"Supplier":            "supplier",
	"Liters":              "liters",
	"Total Cost":          "total_cost",
	"Type":                "type",
	"Vehicle":             "vehicle",
	"Driver":              "driver",
	"Repair Number":       "repair_number",
	"Equipment":           "equipment",
	"Repair Type":         "repair_type",
	"Problem Description": "problem_description",
	"Cost":                "cost",
	"Repair Shop":         "repair_shop",
	"Technician":          "technician",
	"Damage Number":       "damage_number",
	"Item Type":           "item_type",
	"Item Name":           "item_name",
	"Damage Cause":        "damage_cause",
	"Estimated Value":     "estimated_value",
	"Severity":            "severity",
	"Responsible Party":   "responsible_party",
	"Material":            "material_type",
	"Opening":             "opening",
	"Added":               "added",
	"Used":                "used",
	"Closing":             "closing",
}

// FieldFor returns the row field shown under header.
func FieldFor(header string) string {
	if field, ok := columns[header]; ok {
		return field
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(header), " ", "_"))
}

// Table is a materialised report.
type Table struct {
	ID      string
	Title   string
	Headers []string
	Rows    []models.Row
}

// Values returns the raw row values in header order.
func (t Table) Values() [][]interface{} {
	out := make([][]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		line := make([]interface{}, len(t.Headers))
		for i, h := range t.Headers {
			v := row[FieldFor(h)]
			if v == nil {
				v = ""
			}
			line[i] = v
		}
		out = append(out, line)
	}
	return out
}

// Cells returns every value as text in header order.
func (t Table) Cells() [][]string {
	values := t.Values()
	out := make([][]string, len(values))
	for i, line := range values {
		out[i] = make([]string, len(line))
		for j, v := range line {
			out[i][j] = cellText(v)
		}
	}
	return out
}

func cellText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
