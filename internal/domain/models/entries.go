package models

import (
	"fmt"
	"strings"
	"time"
)

// Payment status values derived from the outstanding balance of a sale.
const (
	PaymentPaid    = "Paid"
	PaymentPending = "Pending"
	PaymentPartial = "Partial"
)

// Damage severities.
var damageSeverities = []string{"low", "medium", "high", "critical"}

// Sale is a water sale receipt.
type Sale struct {
	RowID              RecordID `json:"id,omitempty" form:"-"`
	ReceiptNumber      string   `json:"receipt_number" form:"receipt_number"`
	Date               string   `json:"date" form:"date"`
	CustomerName       string   `json:"customer_name" form:"customer_name"`
	ContactInfo        string   `json:"contact_info,omitempty" form:"contact_info"`
	ProductType        string   `json:"product_type" form:"product_type"`
	Quantity           float64  `json:"quantity" form:"quantity"`
	UnitPrice          float64  `json:"unit_price" form:"unit_price"`
	TotalAmount        float64  `json:"total_amount" form:"-"`
	AmountPaid         float64  `json:"amount_paid" form:"amount_paid"`
	OutstandingBalance float64  `json:"outstanding_balance" form:"-"`
	PaymentMethod      string   `json:"payment_method,omitempty" form:"payment_method"`
	Notes              string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (s *Sale) ID() string      { return string(s.RowID) }
func (s *Sale) SetID(id string) { s.RowID = RecordID(id) }
func (s *Sale) Day() string     { return s.Date }

// Derive computes the total and the outstanding balance, never below zero.
func (s *Sale) Derive(now time.Time) {
	s.TotalAmount = Mul(s.Quantity, s.UnitPrice)
	s.OutstandingBalance = Sub(s.TotalAmount, s.AmountPaid)
	if s.OutstandingBalance < 0 {
		s.OutstandingBalance = 0
	}
	if s.ReceiptNumber == "" {
		s.ReceiptNumber = referenceNumber("RCP", now)
	}
}

func (s *Sale) Validate() error {
	return firstError(
		validDate("date", s.Date),
		required("customer_name", s.CustomerName),
		required("product_type", s.ProductType),
		positive("quantity", s.Quantity),
		positive("unit_price", s.UnitPrice),
		nonNegative("amount_paid", s.AmountPaid),
	)
}

// PaymentStatus classifies the sale by how much of it has been paid.
func (s *Sale) PaymentStatus() string {
	switch {
	case s.OutstandingBalance <= 0:
		return PaymentPaid
	case s.OutstandingBalance >= s.TotalAmount:
		return PaymentPending
	default:
		return PaymentPartial
	}
}

func (s *Sale) Headline() string { return "Sale to " + s.CustomerName }
func (s *Sale) Value() float64   { return s.TotalAmount }

// Present adds the payment status to API responses.
func (s *Sale) Present() any {
	return struct {
		*Sale
		PaymentStatus string `json:"payment_status"`
	}{s, s.PaymentStatus()}
}

// Expense is an operating expense.
type Expense struct {
	RowID         RecordID `json:"id,omitempty" form:"-"`
	ExpenseNumber string   `json:"expense_number" form:"expense_number"`
	Date          string   `json:"date" form:"date"`
	Category      string   `json:"category" form:"category"`
	Vendor        string   `json:"vendor,omitempty" form:"vendor"`
	Description   string   `json:"description" form:"description"`
	Amount        float64  `json:"amount" form:"amount"`
	PaymentMethod string   `json:"payment_method,omitempty" form:"payment_method"`
	Notes         string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (e *Expense) ID() string      { return string(e.RowID) }
func (e *Expense) SetID(id string) { e.RowID = RecordID(id) }
func (e *Expense) Day() string     { return e.Date }

func (e *Expense) Derive(now time.Time) {
	e.Amount = Sum(e.Amount)
	if e.ExpenseNumber == "" {
		e.ExpenseNumber = referenceNumber("EXP", now)
	}
}

func (e *Expense) Validate() error {
	return firstError(
		validDate("date", e.Date),
		required("category", e.Category),
		required("description", e.Description),
		positive("amount", e.Amount),
	)
}

func (e *Expense) Headline() string { return e.Category + " expense" }
func (e *Expense) Value() float64   { return e.Amount }

// DieselPurchase is a fuel purchase for the delivery fleet.
type DieselPurchase struct {
	RowID             RecordID `json:"id,omitempty" form:"-"`
	TransactionNumber string   `json:"transaction_number" form:"transaction_number"`
	Date              string   `json:"date" form:"date"`
	Supplier          string   `json:"supplier" form:"supplier"`
	Liters            float64  `json:"liters" form:"liters"`
	UnitPrice         float64  `json:"unit_price" form:"unit_price"`
	TotalCost         float64  `json:"total_cost" form:"-"`
	Vehicle           string   `json:"vehicle,omitempty" form:"vehicle"`
	Driver            string   `json:"driver,omitempty" form:"driver"`
	PaymentMethod     string   `json:"payment_method,omitempty" form:"payment_method"`
	Notes             string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (d *DieselPurchase) ID() string      { return string(d.RowID) }
func (d *DieselPurchase) SetID(id string) { d.RowID = RecordID(id) }
func (d *DieselPurchase) Day() string     { return d.Date }

func (d *DieselPurchase) Derive(now time.Time) {
	d.TotalCost = Mul(d.Liters, d.UnitPrice)
	if d.TransactionNumber == "" {
		d.TransactionNumber = referenceNumber("DSL", now)
	}
}

func (d *DieselPurchase) Validate() error {
	return firstError(
		validDate("date", d.Date),
		required("supplier", d.Supplier),
		positive("liters", d.Liters),
		positive("unit_price", d.UnitPrice),
	)
}

func (d *DieselPurchase) Headline() string {
	return fmt.Sprintf("Diesel %gL from %s", d.Liters, d.Supplier)
}
func (d *DieselPurchase) Value() float64 { return d.TotalCost }

// Repair is a maintenance job on plant equipment or vehicles.
type Repair struct {
	RowID              RecordID `json:"id,omitempty" form:"-"`
	RepairNumber       string   `json:"repair_number" form:"repair_number"`
	Date               string   `json:"date" form:"date"`
	Equipment          string   `json:"equipment" form:"equipment"`
	RepairType         string   `json:"repair_type,omitempty" form:"repair_type"`
	ProblemDescription string   `json:"problem_description" form:"problem_description"`
	Cost               float64  `json:"cost" form:"cost"`
	RepairShop         string   `json:"repair_shop,omitempty" form:"repair_shop"`
	Technician         string   `json:"technician,omitempty" form:"technician"`
	PaymentMethod      string   `json:"payment_method,omitempty" form:"payment_method"`
	Notes              string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (r *Repair) ID() string      { return string(r.RowID) }
func (r *Repair) SetID(id string) { r.RowID = RecordID(id) }
func (r *Repair) Day() string     { return r.Date }

func (r *Repair) Derive(now time.Time) {
	r.Cost = Sum(r.Cost)
	if r.RepairNumber == "" {
		r.RepairNumber = referenceNumber("REP", now)
	}
}

func (r *Repair) Validate() error {
	return firstError(
		validDate("date", r.Date),
		required("equipment", r.Equipment),
		required("problem_description", r.ProblemDescription),
		nonNegative("cost", r.Cost),
	)
}

func (r *Repair) Headline() string { return "Repair: " + r.Equipment }
func (r *Repair) Value() float64   { return r.Cost }

// Damage records lost or broken stock and equipment.
type Damage struct {
	RowID            RecordID `json:"id,omitempty" form:"-"`
	DamageNumber     string   `json:"damage_number" form:"damage_number"`
	Date             string   `json:"date" form:"date"`
	ItemType         string   `json:"item_type" form:"item_type"`
	ItemName         string   `json:"item_name" form:"item_name"`
	DamageCause      string   `json:"damage_cause,omitempty" form:"damage_cause"`
	EstimatedValue   float64  `json:"estimated_value" form:"estimated_value"`
	Severity         string   `json:"severity" form:"severity"`
	ResponsibleParty string   `json:"responsible_party,omitempty" form:"responsible_party"`
	Description      string   `json:"description,omitempty" form:"description"`
	Notes            string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (d *Damage) ID() string      { return string(d.RowID) }
func (d *Damage) SetID(id string) { d.RowID = RecordID(id) }
func (d *Damage) Day() string     { return d.Date }

func (d *Damage) Derive(now time.Time) {
	d.Severity = strings.ToLower(strings.TrimSpace(d.Severity))
	if d.Severity == "" {
		d.Severity = "medium"
	}
	d.EstimatedValue = Sum(d.EstimatedValue)
	if d.DamageNumber == "" {
		d.DamageNumber = referenceNumber("DMG", now)
	}
}

func (d *Damage) Validate() error {
	err := firstError(
		validDate("date", d.Date),
		required("item_type", d.ItemType),
		required("item_name", d.ItemName),
		nonNegative("estimated_value", d.EstimatedValue),
	)
	if err != nil {
		return err
	}
	for _, s := range damageSeverities {
		if d.Severity == s {
			return nil
		}
	}
	return &ValidationError{Field: "severity", Message: "severity must be one of " + strings.Join(damageSeverities, ", ")}
}

func (d *Damage) Headline() string { return "Damage: " + d.ItemName }
func (d *Damage) Value() float64   { return d.EstimatedValue }

// ProductionRecord counts units produced on a day.
type ProductionRecord struct {
	RowID    RecordID `json:"id,omitempty" form:"-"`
	Date     string   `json:"date" form:"date"`
	Category string   `json:"category" form:"category"`
	Quantity float64  `json:"quantity" form:"quantity"`
	Notes    string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (p *ProductionRecord) ID() string         { return string(p.RowID) }
func (p *ProductionRecord) SetID(id string)    { p.RowID = RecordID(id) }
func (p *ProductionRecord) Day() string        { return p.Date }
func (p *ProductionRecord) Derive(_ time.Time) {}

func (p *ProductionRecord) Validate() error {
	return firstError(
		validDate("date", p.Date),
		required("category", p.Category),
		positive("quantity", p.Quantity),
	)
}

func (p *ProductionRecord) Headline() string {
	return fmt.Sprintf("Produced %g %s", p.Quantity, p.Category)
}
func (p *ProductionRecord) Value() float64 { return p.Quantity }

// MaterialUsage is raw material consumed by production.
type MaterialUsage struct {
	RowID        RecordID `json:"id,omitempty" form:"-"`
	Date         string   `json:"date" form:"date"`
	MaterialType string   `json:"material_type" form:"material_type"`
	QuantityUsed float64  `json:"quantity_used" form:"quantity_used"`
	Notes        string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (m *MaterialUsage) ID() string         { return string(m.RowID) }
func (m *MaterialUsage) SetID(id string)    { m.RowID = RecordID(id) }
func (m *MaterialUsage) Day() string        { return m.Date }
func (m *MaterialUsage) Derive(_ time.Time) {}

func (m *MaterialUsage) Validate() error {
	return firstError(
		validDate("date", m.Date),
		required("material_type", m.MaterialType),
		positive("quantity_used", m.QuantityUsed),
	)
}

func (m *MaterialUsage) Headline() string {
	return fmt.Sprintf("Used %g %s", m.QuantityUsed, m.MaterialType)
}
func (m *MaterialUsage) Value() float64 { return m.QuantityUsed }

// MaterialPurchase is raw material added to inventory.
type MaterialPurchase struct {
	RowID         RecordID `json:"id,omitempty" form:"-"`
	Date          string   `json:"date" form:"date"`
	MaterialType  string   `json:"material_type" form:"material_type"`
	QuantityAdded float64  `json:"quantity_added" form:"quantity_added"`
	Vendor        string   `json:"vendor,omitempty" form:"vendor"`
	Cost          float64  `json:"cost" form:"cost"`
	Notes         string   `json:"notes,omitempty" form:"notes"`
	Attribution
}

func (m *MaterialPurchase) ID() string      { return string(m.RowID) }
func (m *MaterialPurchase) SetID(id string) { m.RowID = RecordID(id) }
func (m *MaterialPurchase) Day() string     { return m.Date }

func (m *MaterialPurchase) Derive(_ time.Time) { m.Cost = Sum(m.Cost) }

func (m *MaterialPurchase) Validate() error {
	return firstError(
		validDate("date", m.Date),
		required("material_type", m.MaterialType),
		positive("quantity_added", m.QuantityAdded),
		nonNegative("cost", m.Cost),
	)
}

func (m *MaterialPurchase) Headline() string {
	return fmt.Sprintf("Bought %g %s", m.QuantityAdded, m.MaterialType)
}
func (m *MaterialPurchase) Value() float64 { return m.Cost }

// Materials tracked by the plant inventory, in display order.
var Materials = []string{"B. Preform", "S. Preform", "Big Caps", "Small Caps", "Plastic"}
