package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestSaleDeriveScenario(t *testing.T) {
	s := &Sale{Date: "2026-03-14", CustomerName: "Amani", ProductType: "20L", Quantity: 5, UnitPrice: 3000, AmountPaid: 10000}
	s.Derive(fixedNow)

	assert.Equal(t, 15000.0, s.TotalAmount)
	assert.Equal(t, 5000.0, s.OutstandingBalance)
	assert.Equal(t, PaymentPartial, s.PaymentStatus())
	assert.Regexp(t, `^RCP-20260314-[0-9A-F]{6}$`, s.ReceiptNumber)
	require.NoError(t, s.Validate())
}

func TestSaleTotalsHoldForAnyInput(t *testing.T) {
	quantities := []float64{0, 1, 3, 7.5, 120}
	prices := []float64{0, 0.1, 19.99, 3000}
	paid := []float64{0, 0.3, 500, 1e6}

	for _, q := range quantities {
		for _, u := range prices {
			for _, p := range paid {
				s := &Sale{Quantity: q, UnitPrice: u, AmountPaid: p}
				s.Derive(fixedNow)
				assert.Equal(t, Mul(q, u), s.TotalAmount)
				assert.GreaterOrEqual(t, s.OutstandingBalance, 0.0)
				if p >= s.TotalAmount {
					assert.Zero(t, s.OutstandingBalance)
				} else {
					assert.Equal(t, Sub(s.TotalAmount, p), s.OutstandingBalance)
				}
			}
		}
	}
}

func TestSalePaymentStatus(t *testing.T) {
	paid := &Sale{Quantity: 2, UnitPrice: 50, AmountPaid: 100}
	paid.Derive(fixedNow)
	assert.Equal(t, PaymentPaid, paid.PaymentStatus())

	pending := &Sale{Quantity: 2, UnitPrice: 50}
	pending.Derive(fixedNow)
	assert.Equal(t, PaymentPending, pending.PaymentStatus())

	overpaid := &Sale{Quantity: 1, UnitPrice: 50, AmountPaid: 80}
	overpaid.Derive(fixedNow)
	assert.Zero(t, overpaid.OutstandingBalance)
	assert.Equal(t, PaymentPaid, overpaid.PaymentStatus())
}

func TestSaleDeriveIsIdempotent(t *testing.T) {
	s := &Sale{Quantity: 3, UnitPrice: 0.1, AmountPaid: 0.1}
	s.Derive(fixedNow)
	first := *s
	s.Derive(fixedNow.Add(time.Hour))
	assert.Equal(t, first, *s)
}

func TestValidateReportsFirstMissingField(t *testing.T) {
	s := &Sale{Date: "2026-03-14", Quantity: 0}
	err := s.Validate()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "customer_name", verr.Field)
	assert.Equal(t, "customer_name is required", verr.Error())
}

func TestValidateRejectsBadDate(t *testing.T) {
	e := &Expense{Date: "14/03/2026", Category: "Fuel", Description: "x", Amount: 10}
	var verr *ValidationError
	require.ErrorAs(t, e.Validate(), &verr)
	assert.Equal(t, "date", verr.Field)
}

func TestDieselDeriveTotal(t *testing.T) {
	d := &DieselPurchase{Date: "2026-03-14", Supplier: "Total", Liters: 40.5, UnitPrice: 180.2}
	d.Derive(fixedNow)
	assert.Equal(t, 7298.1, d.TotalCost)
	require.NoError(t, d.Validate())
}

func TestDamageSeverity(t *testing.T) {
	d := &Damage{Date: "2026-03-14", ItemType: "bottle", ItemName: "20L jar", Severity: " HIGH "}
	d.Derive(fixedNow)
	assert.Equal(t, "high", d.Severity)
	require.NoError(t, d.Validate())

	d.Severity = "catastrophic"
	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "severity", verr.Field)

	blank := &Damage{}
	blank.Derive(fixedNow)
	assert.Equal(t, "medium", blank.Severity)
}

func TestRecordRowRoundTrip(t *testing.T) {
	s := &Sale{Date: "2026-03-14", CustomerName: "Amani", ProductType: "20L", Quantity: 5, UnitPrice: 3000, AmountPaid: 10000}
	s.Derive(fixedNow)
	s.Stamp("clerk@starland.co", "Clerk", fixedNow)

	row, err := ToRow(s)
	require.NoError(t, err)
	assert.NotContains(t, row, "id")
	assert.Equal(t, "clerk@starland.co", row["created_by"])

	row["id"] = 42.0
	back := &Sale{}
	require.NoError(t, FromRow(row, back))
	assert.Equal(t, "42", back.ID())
	back.SetID("")
	assert.Equal(t, *s, *back)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Management ")
	require.NoError(t, err)
	assert.Equal(t, RoleManagement, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Zero(t, Div(10, 0))
	assert.Equal(t, 3.33, Div(10, 3))
}

func TestParseDateAcceptsTimestamps(t *testing.T) {
	d, err := ParseDate("2026-03-14T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), d)
}
