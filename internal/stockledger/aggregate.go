package stockledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

// Group is the aggregated view of one (product, scope) bucket: every
// physical stock row summed together with the bucket's outstanding
// demand.
type Group struct {
	ProductID      uuid.UUID
	Scope          Scope
	Available      decimal.Decimal
	Demand         decimal.Decimal
	TotalValue     decimal.Decimal
	LastReceivedAt *time.Time
	LastChangeAt   *time.Time
}

// NetAvailable is available minus demand; negative means shortage.
func (g *Group) NetAvailable() decimal.Decimal {
	return g.Available.Sub(g.Demand)
}

// AvgUnitCost is total value over available quantity, 0 for an empty
// bucket.
func (g *Group) AvgUnitCost() decimal.Decimal {
	if g.Available.IsPositive() {
		return g.TotalValue.Div(g.Available)
	}
	return decimal.Zero
}

// Aggregate groups raw stock and demand rows by (product, scope).
// Quantities and values are summed; group timestamps are the latest among
// constituent rows, with nil sorting before any real timestamp.
func Aggregate(stocks []database.StockRecord, demands []database.DemandRecord) map[GroupKey]*Group {
	groups := make(map[GroupKey]*Group)

	get := func(productID uuid.UUID, scope Scope) *Group {
		key := GroupKey{ProductID: productID, Scope: scope}
		g, ok := groups[key]
		if !ok {
			g = &Group{ProductID: productID, Scope: scope}
			groups[key] = g
		}
		return g
	}

	for _, s := range stocks {
		g := get(s.ProductID, FromClientID(s.ClientID))
		g.Available = g.Available.Add(s.Quantity)
		g.TotalValue = g.TotalValue.Add(s.TotalValue)
		g.LastReceivedAt = laterOf(g.LastReceivedAt, s.LastReceivedAt)
	}
	for _, d := range demands {
		g := get(d.ProductID, FromClientID(d.ClientID))
		g.Demand = g.Demand.Add(d.QtyOutstanding)
		g.LastChangeAt = laterOf(g.LastChangeAt, d.LastChangeAt)
	}
	return groups
}

// Lookup returns the group for the exact resolved scope, falling back to
// the product's pooled bucket when no record exists for that scope. The
// fallback is read-side only; writes never merge buckets.
func Lookup(groups map[GroupKey]*Group, productID uuid.UUID, scope Scope) *Group {
	if g, ok := groups[GroupKey{ProductID: productID, Scope: scope}]; ok {
		return g
	}
	if !scope.IsGeneric() {
		if g, ok := groups[GroupKey{ProductID: productID, Scope: Generic()}]; ok {
			return g
		}
	}
	return nil
}

func laterOf(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || b.Before(*a) {
		return a
	}
	return b
}
