package records

import (
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/auth"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/events"
	"github.com/starland/ledger/internal/repository/remote"
)

// Kind configures a record module for one entry type.
type Kind struct {
	// Name labels the kind in routes, events and activity feeds.
	Name string
	// Resource is the permission matrix resource guarding the kind.
	Resource string
	Table    string
	// LocalKey is the collection used in the local store.
	LocalKey string
	// Mutable kinds accept updates and deletes.
	Mutable bool
	New     func() models.Record
}

// Entry kinds.
var (
	Sales = Kind{
		Name: "sales", Resource: auth.ResourceSales, Table: remote.TableSales,
		LocalKey: "salesEntries", Mutable: true,
		New: func() models.Record { return &models.Sale{} },
	}
	Expenses = Kind{
		Name: "expenses", Resource: auth.ResourceExpenses, Table: remote.TableExpenses,
		LocalKey: "expenseEntries", Mutable: true,
		New: func() models.Record { return &models.Expense{} },
	}
	Diesel = Kind{
		Name: "diesel", Resource: auth.ResourceDiesel, Table: remote.TableDiesel,
		LocalKey: "dieselEntries",
		New:      func() models.Record { return &models.DieselPurchase{} },
	}
	Repairs = Kind{
		Name: "repairs", Resource: auth.ResourceRepairs, Table: remote.TableRepairs,
		LocalKey: "repairEntries",
		New:      func() models.Record { return &models.Repair{} },
	}
	Damages = Kind{
		Name: "damages", Resource: auth.ResourceDamages, Table: remote.TableDamages,
		LocalKey: "damageEntries",
		New:      func() models.Record { return &models.Damage{} },
	}
	Production = Kind{
		Name: "production", Resource: auth.ResourceProduction, Table: remote.TableProduction,
		LocalKey: "productionEntries", Mutable: true,
		New: func() models.Record { return &models.ProductionRecord{} },
	}
	MaterialUsage = Kind{
		Name: "materials-usage", Resource: auth.ResourceMaterials, Table: remote.TableMaterialUsage,
		LocalKey: "materialUsageEntries", Mutable: true,
		New: func() models.Record { return &models.MaterialUsage{} },
	}
	MaterialPurchases = Kind{
		Name: "materials-purchases", Resource: auth.ResourceMaterials, Table: remote.TableMaterialPurchases,
		LocalKey: "materialPurchaseEntries",
		New:      func() models.Record { return &models.MaterialPurchase{} },
	}
)

// Kinds lists every entry kind.
var Kinds = []Kind{Sales, Expenses, Diesel, Repairs, Damages, Production, MaterialUsage, MaterialPurchases}

// Set holds one module per kind.
type Set struct {
	Sales             *Module
	Expenses          *Module
	Diesel            *Module
	Repairs           *Module
	Damages           *Module
	Production        *Module
	MaterialUsage     *Module
	MaterialPurchases *Module
}

// NewSet builds every module over the same collaborators.
func NewSet(tables remote.Tables, store LocalStore, publisher events.Publisher, logger *zap.Logger) *Set {
	build := func(k Kind) *Module { return NewModule(k, tables, store, publisher, logger) }
	return &Set{
		Sales:             build(Sales),
		Expenses:          build(Expenses),
		Diesel:            build(Diesel),
		Repairs:           build(Repairs),
		Damages:           build(Damages),
		Production:        build(Production),
		MaterialUsage:     build(MaterialUsage),
		MaterialPurchases: build(MaterialPurchases),
	}
}

// All returns the modules in Kinds order.
func (s *Set) All() []*Module {
	return []*Module{s.Sales, s.Expenses, s.Diesel, s.Repairs, s.Damages, s.Production, s.MaterialUsage, s.MaterialPurchases}
}

// Lookup returns the module for a kind name.
func (s *Set) Lookup(name string) (*Module, bool) {
	for _, m := range s.All() {
		if m.Kind().Name == name {
			return m, true
		}
	}
	return nil, false
}

// KindForTable returns the kind persisted in table.
func KindForTable(table string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Table == table {
			return k, true
		}
	}
	return Kind{}, false
}
