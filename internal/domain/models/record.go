package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by every record.
const DateLayout = "2006-01-02"

// Row is a record as exchanged with the table API: column name to value.
type Row = map[string]any

// Record is implemented by every bookkeeping entry kind.
type Record interface {
	// ID returns the remote identifier, empty until the row is stored remotely.
	ID() string
	SetID(id string)
	// Day returns the business date of the entry (YYYY-MM-DD).
	Day() string
	// Meta exposes the creator attribution embedded in the record.
	Meta() *Attribution
	// Derive fills computed columns and defaults. It is idempotent.
	Derive(now time.Time)
	// Validate returns the first *ValidationError in field order.
	Validate() error
	// Headline is a one line description used in activity feeds.
	Headline() string
	// Value is the monetary (or quantity) figure shown next to the headline.
	Value() float64
}

// RecordID accepts numeric and textual identifiers from the table API.
type RecordID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RecordID) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
	default:
		*id = RecordID(b)
	}
	return nil
}

// Attribution identifies who created a record and when.
type Attribution struct {
	CreatedAt     string `json:"created_at,omitempty" form:"-"`
	CreatedBy     string `json:"created_by,omitempty" form:"-"`
	CreatedByName string `json:"created_by_name,omitempty" form:"-"`
}

// Meta returns the attribution itself so embedding types satisfy Record.
func (a *Attribution) Meta() *Attribution { return a }

// Stamp sets creator fields and the creation time.
func (a *Attribution) Stamp(email, name string, now time.Time) {
	a.CreatedBy = email
	a.CreatedByName = name
	a.CreatedAt = now.UTC().Format(time.RFC3339)
}

// CreatedTime parses CreatedAt, returning the zero time when unset or malformed.
func (a *Attribution) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, a.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ValidationError reports an invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
	}
	return nil
}

func positive(field string, v float64) error {
	if v <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be greater than zero", field)}
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if v < 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must not be negative", field)}
	}
	return nil
}

func validDate(field, value string) error {
	if err := required(field, value); err != nil {
		return err
	}
	if _, err := ParseDate(value); err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseDate reads the calendar date at the start of a date or timestamp string.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) >= len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	return time.Parse(DateLayout, value)
}

// Mul multiplies two amounts and rounds to cents.
func Mul(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Sub subtracts b from a, rounded to cents.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Sum adds amounts without accumulating float error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// Div divides a by b, rounded to cents. Division by zero yields zero.
func Div(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return decimal.NewFromFloat(a).Div(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

func referenceNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

// ToRow converts a record into table columns.
func ToRow(rec Record) (Row, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", rec, err)
	}
	row := Row{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode %T columns: %w", rec, err)
	}
	return row, nil
}

// FromRow fills rec from table columns.
func FromRow(row Row, rec Record) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return fmt.Errorf("decode row into %T: %w", rec, err)
	}
	return nil
}
