package order

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/internal/stockledger"
	"github.com/tradebook/tradebook-backend/pkg/database"
)

// ErrNotPending is returned when a terminal transition is attempted on an
// order that is no longer pending.
var ErrNotPending = errors.New("order is not pending")

// CloseTx moves a pending order to a terminal status (Converted or
// Cancelled) and releases the demand its lines raised at creation,
// clamped at zero per bucket. The order's Items must be loaded. Sale
// creation calls this too, always with the order's original quantities
// regardless of what the sale actually shipped.
func CloseTx(tx *gorm.DB, order *database.Order, status string, at time.Time) error {
	if status != database.OrderConverted && status != database.OrderCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	if order.Status != database.OrderPending {
		return ErrNotPending
	}

	res := tx.Model(&database.Order{}).
		Where("id = ? AND status = ?", order.ID, database.OrderPending).
		Updates(map[string]interface{}{
			"status":    status,
			"is_active": false,
		})
	if res.Error != nil {
		return res.Error
	}
	// Zero matched rows means another transaction closed the order after
	// we read it; releasing demand again here would drain buckets shared
	// with other pending orders.
	if res.RowsAffected == 0 {
		return ErrNotPending
	}

	for _, item := range order.Items {
		var product database.Product
		if err := tx.Where("id = ?", item.ProductID).First(&product).Error; err != nil {
			return err
		}
		scope := stockledger.Resolve(product.Classification, &order.ClientID)
		if err := stockledger.ReleaseDemand(tx, item.ProductID, scope, item.Quantity, at); err != nil {
			return err
		}
	}

	order.Status = status
	order.IsActive = false
	return nil
}
