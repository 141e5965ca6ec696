package records

import (
	"context"
	"fmt"
	"sort"

	"github.com/starland/ledger/internal/domain/models"
)

// InventorySummary balances material purchases against usage for the window [from, to].
// Movements dated before from make up the opening balance.
func (s *Set) InventorySummary(ctx context.Context, from, to string) ([]models.InventoryLine, error) {
	window := Filter{From: from, To: to}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	bought, err := s.MaterialPurchases.List(ctx, Filter{To: to})
	if err != nil {
		return nil, fmt.Errorf("inventory purchases: %w", err)
	}
	used, err := s.MaterialUsage.List(ctx, Filter{To: to})
	if err != nil {
		return nil, fmt.Errorf("inventory usage: %w", err)
	}

	lines := map[string]*models.InventoryLine{}
	line := func(material string) *models.InventoryLine {
		l, ok := lines[material]
		if !ok {
			l = &models.InventoryLine{MaterialType: material}
			lines[material] = l
		}
		return l
	}
	for _, m := range models.Materials {
		line(m)
	}

	before := func(day string) bool {
		return from != "" && !(Filter{From: from}).includes(day)
	}

	for _, rec := range bought.Records {
		p, ok := rec.(*models.MaterialPurchase)
		if !ok {
			continue
		}
		l := line(p.MaterialType)
		if before(p.Date) {
			l.Opening = models.Sum(l.Opening, p.QuantityAdded)
		} else {
			l.Added = models.Sum(l.Added, p.QuantityAdded)
		}
	}
	for _, rec := range used.Records {
		u, ok := rec.(*models.MaterialUsage)
		if !ok {
			continue
		}
		l := line(u.MaterialType)
		if before(u.Date) {
			l.Opening = models.Sub(l.Opening, u.QuantityUsed)
		} else {
			l.Used = models.Sum(l.Used, u.QuantityUsed)
		}
	}

	out := make([]models.InventoryLine, 0, len(lines))
	for _, m := range models.Materials {
		out = append(out, finish(lines[m]))
		delete(lines, m)
	}
	extra := make([]string, 0, len(lines))
	for name := range lines {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, finish(lines[name]))
	}
	return out, nil
}

func finish(l *models.InventoryLine) models.InventoryLine {
	l.Closing = models.Sub(models.Sum(l.Opening, l.Added), l.Used)
	return *l
}
