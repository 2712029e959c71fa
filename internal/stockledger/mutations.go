package stockledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

// All mutations here expect to run inside a caller-owned gorm transaction
// so that a failure in any step rolls back the whole operation; none of
// them commit or roll back themselves.

// ReceiveStock records a receiving batch as a new physical stock row in
// the pooled bucket. Purchases always land pooled regardless of any
// client tag on the purchase header.
func ReceiveStock(tx *gorm.DB, productID uuid.UUID, qty, value decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("received quantity must be positive")
	}
	rec := database.StockRecord{
		ProductID:      productID,
		ClientID:       nil,
		Quantity:       qty,
		TotalValue:     value,
		LastReceivedAt: &at,
	}
	return tx.Create(&rec).Error
}

// AvailableQty sums the physical rows of one (product, scope) bucket.
func AvailableQty(tx *gorm.DB, productID uuid.UUID, scope Scope) (decimal.Decimal, error) {
	rows, err := bucketRows(tx, productID, scope)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Quantity)
	}
	return total, nil
}

// DeductStock removes qty from the (product, scope) bucket, consuming
// physical rows largest-available-first. A fully consumed row is deleted
// rather than kept at zero; a partially consumed row has its value scaled
// proportionally so average unit cost is unchanged. Availability is
// re-checked here inside the transaction, independent of any client-side
// validation.
func DeductStock(tx *gorm.DB, productID uuid.UUID, scope Scope, qty decimal.Decimal) error {
	rows, err := bucketRows(tx, productID, scope)
	if err != nil {
		return err
	}
	plan, err := PlanDeduction(rows, qty)
	if err != nil {
		return err
	}
	for _, step := range plan {
		if step.Remove {
			if err := tx.Delete(&database.StockRecord{}, "id = ?", step.Record.ID).Error; err != nil {
				return err
			}
			continue
		}
		newQty := step.Record.Quantity.Sub(step.Take)
		newValue := ScaledValue(step.Record.TotalValue, step.Record.Quantity, newQty)
		err := tx.Model(&database.StockRecord{}).
			Where("id = ?", step.Record.ID).
			Updates(map[string]interface{}{
				"quantity":    newQty,
				"total_value": newValue,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// raiseOutstanding and releaseOutstanding are the demand bucket
// arithmetic: raises accumulate, releases clamp at zero so an
// over-release (order quantities differing from what was fulfilled)
// can never drive a bucket negative.
func raiseOutstanding(current, qty decimal.Decimal) decimal.Decimal {
	return current.Add(qty)
}

func releaseOutstanding(current, qty decimal.Decimal) decimal.Decimal {
	next := current.Sub(qty)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// AddDemand increases the (product, scope) demand bucket by qty, creating
// the record when absent.
func AddDemand(tx *gorm.DB, productID uuid.UUID, scope Scope, qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("demand quantity must be positive")
	}
	rec, err := demandRow(tx, productID, scope)
	if err != nil {
		return err
	}
	if rec == nil {
		created := database.DemandRecord{
			ProductID:      productID,
			ClientID:       scope.ClientID(),
			QtyOutstanding: qty,
			LastChangeAt:   &at,
		}
		return tx.Create(&created).Error
	}
	return tx.Model(&database.DemandRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"qty_outstanding": raiseOutstanding(rec.QtyOutstanding, qty),
			"last_change_at":  at,
		}).Error
}

// ReleaseDemand decreases the (product, scope) demand bucket by qty,
// clamping at zero. A missing record is treated as already released.
func ReleaseDemand(tx *gorm.DB, productID uuid.UUID, scope Scope, qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("release quantity must be positive")
	}
	rec, err := demandRow(tx, productID, scope)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return tx.Model(&database.DemandRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"qty_outstanding": releaseOutstanding(rec.QtyOutstanding, qty),
			"last_change_at":  at,
		}).Error
}

func bucketRows(tx *gorm.DB, productID uuid.UUID, scope Scope) ([]database.StockRecord, error) {
	var rows []database.StockRecord
	q := tx.Where("product_id = ?", productID)
	if clientID := scope.ClientID(); clientID != nil {
		q = q.Where("client_id = ?", clientID)
	} else {
		q = q.Where("client_id IS NULL")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func demandRow(tx *gorm.DB, productID uuid.UUID, scope Scope) (*database.DemandRecord, error) {
	var rec database.DemandRecord
	q := tx.Where("product_id = ?", productID)
	if clientID := scope.ClientID(); clientID != nil {
		q = q.Where("client_id = ?", clientID)
	} else {
		q = q.Where("client_id IS NULL")
	}
	err := q.Order("created_at ASC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
