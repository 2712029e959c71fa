package stockledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

// SplitProportional allocates total across the given weights, rounding
// each share to two decimals. The last element absorbs the rounding
// remainder so the parts always sum exactly to total. Zero total yields
// all-zero parts; an all-zero weight set splits evenly. When per-share
// rounding overshoots a very small total across many lines, the
// absorbing share can come out negative; the exact-sum invariant still
// holds.
func SplitProportional(weights []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	parts := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return parts
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	even := sum.IsZero()
	if even {
		sum = decimal.NewFromInt(int64(len(weights)))
	}

	allocated := decimal.Zero
	for i := range weights {
		if i == len(weights)-1 {
			parts[i] = total.Sub(allocated)
			break
		}
		w := weights[i]
		if even {
			w = decimal.NewFromInt(1)
		}
		parts[i] = total.Mul(w).Div(sum).Round(2)
		allocated = allocated.Add(parts[i])
	}
	return parts
}

// Deduction is one step of a planned stock consumption: take Take units
// from the row, removing it entirely when Remove is set.
type Deduction struct {
	Record database.StockRecord
	Take   decimal.Decimal
	Remove bool
}

// PlanDeduction builds the consumption plan for taking qty out of the
// given physical rows, largest-available-first. Fails when the rows
// cannot cover the requested quantity.
func PlanDeduction(rows []database.StockRecord, qty decimal.Decimal) ([]Deduction, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("deduction quantity must be positive")
	}

	sorted := make([]database.StockRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Quantity.GreaterThan(sorted[j].Quantity)
	})

	var plan []Deduction
	remaining := qty
	for _, row := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !row.Quantity.IsPositive() {
			continue
		}
		take := decimal.Min(row.Quantity, remaining)
		plan = append(plan, Deduction{
			Record: row,
			Take:   take,
			Remove: take.Equal(row.Quantity),
		})
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("insufficient stock: short by %s", remaining.String())
	}
	return plan, nil
}

// ScaledValue returns the row value after a partial consumption,
// preserving the average unit cost: newValue = oldValue * newQty/oldQty.
func ScaledValue(oldValue, oldQty, newQty decimal.Decimal) decimal.Decimal {
	if oldQty.IsZero() {
		return decimal.Zero
	}
	return oldValue.Mul(newQty).Div(oldQty).Round(4)
}
