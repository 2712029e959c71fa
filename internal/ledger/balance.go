package ledger

import "github.com/shopspring/decimal"

// Bill statuses
const (
	StatusPaid    = "paid"
	StatusPending = "pending"
)

// paidTolerance guards the paid/pending classification against sub-cent
// drift in summed payment amounts.
var paidTolerance = decimal.NewFromFloat(0.009)

// Balance returns the outstanding amount on a bill: total minus the sum
// of its payments, floored at zero (overpayment never goes negative).
func Balance(total, paid decimal.Decimal) decimal.Decimal {
	balance := total.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// Classify labels a bill paid or pending from its total and the summed
// payments against it.
func Classify(total, paid decimal.Decimal) string {
	if total.Sub(paid).LessThanOrEqual(paidTolerance) {
		return StatusPaid
	}
	return StatusPending
}
