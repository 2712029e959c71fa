package ledger

import (
	"testing"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func TestPurchaseTotalUsesLineTaxSnapshot(t *testing.T) {
	purchase := database.Purchase{
		FreightChargeTotal: dec("50"),
		Items: []database.PurchaseItem{
			{
				Quantity:  dec("10"),
				UnitPrice: dec("100"),
				TaxRate:   "18",
				// The product has since moved to another slab; the
				// bill must keep the rate it was raised at.
				Product: database.Product{TaxRate: "28"},
			},
		},
	}

	// 1000 line value + 180 tax at the snapshotted 18% + 50 freight.
	if got := purchaseTotal(purchase); !got.Equal(dec("1230")) {
		t.Errorf("purchaseTotal = %s, want 1230", got)
	}
}

func TestPurchaseTotalExemptAndMultiLine(t *testing.T) {
	purchase := database.Purchase{
		Items: []database.PurchaseItem{
			{Quantity: dec("4"), UnitPrice: dec("25"), TaxRate: "exempt"},
			{Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: "5"},
		},
	}

	// 100 exempt + 100 + 5 tax, no freight.
	if got := purchaseTotal(purchase); !got.Equal(dec("205")) {
		t.Errorf("purchaseTotal = %s, want 205", got)
	}
}
