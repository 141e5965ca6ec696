package models

import "time"

// DailyReport is the per-day dashboard snapshot archived in MongoDB.
type DailyReport struct {
	Date               string    `bson:"date" json:"date"`
	Revenue            float64   `bson:"revenue" json:"revenue"`
	AmountPaid         float64   `bson:"amount_paid" json:"amount_paid"`
	Outstanding        float64   `bson:"outstanding" json:"outstanding"`
	Expenses           float64   `bson:"expenses" json:"expenses"`
	NetIncome          float64   `bson:"net_income" json:"net_income"`
	DieselCost         float64   `bson:"diesel_cost" json:"diesel_cost"`
	RepairCost         float64   `bson:"repair_cost" json:"repair_cost"`
	DamageValue        float64   `bson:"damage_value" json:"damage_value"`
	ProductionQuantity float64   `bson:"production_quantity" json:"production_quantity"`
	SalesCount         int       `bson:"sales_count" json:"sales_count"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
}

// Summary is the keyed set of dashboard figures for a period.
type Summary struct {
	From               string            `json:"from,omitempty"`
	To                 string            `json:"to,omitempty"`
	TotalRevenue       float64           `json:"total_revenue"`
	TotalPaid          float64           `json:"total_paid"`
	OutstandingBalance float64           `json:"outstanding_balance"`
	SalesCount         int               `json:"sales_count"`
	AverageSale        float64           `json:"average_sale"`
	TotalExpenses      float64           `json:"total_expenses"`
	ExpenseCount       int               `json:"expense_count"`
	AverageExpense     float64           `json:"average_expense"`
	NetIncome          float64           `json:"net_income"`
	DieselCost         float64           `json:"diesel_cost"`
	DieselLiters       float64           `json:"diesel_liters"`
	RepairCost         float64           `json:"repair_cost"`
	DamageValue        float64           `json:"damage_value"`
	ProductionQuantity float64           `json:"production_quantity"`
	MaterialsUsed      float64           `json:"materials_used"`
	Debtors            []Debtor          `json:"debtors"`
	RecentActivity     []Activity        `json:"recent_activity"`
	Sources            map[string]string `json:"sources"`
}

// Debtor is a customer with an unpaid balance.
type Debtor struct {
	CustomerName string  `json:"customer_name"`
	Outstanding  float64 `json:"outstanding"`
	Sales        int     `json:"sales"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Kind        string  `json:"kind"`
	ID          string  `json:"id,omitempty"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"created_at,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// InventoryLine summarises one material over a window.
type InventoryLine struct {
	MaterialType string  `json:"material_type"`
	Opening      float64 `json:"opening"`
	Added        float64 `json:"added"`
	Used         float64 `json:"used"`
	Closing      float64 `json:"closing"`
}
