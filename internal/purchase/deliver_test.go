package purchase

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func TestSelectUndelivered(t *testing.T) {
	a := database.PurchaseItem{ID: uuid.New()}
	b := database.PurchaseItem{ID: uuid.New()}
	delivered := database.PurchaseItem{ID: uuid.New(), Delivered: true}
	items := []database.PurchaseItem{a, b, delivered}

	selected, err := selectUndelivered(items, []uuid.UUID{b.ID, a.ID})
	if err != nil {
		t.Fatalf("selectUndelivered: %v", err)
	}
	if len(selected) != 2 || selected[0].ID != b.ID || selected[1].ID != a.ID {
		t.Errorf("selection should preserve request order, got %v", selected)
	}

	if _, err := selectUndelivered(items, []uuid.UUID{uuid.New()}); err == nil {
		t.Error("foreign line id must be rejected")
	}
	if _, err := selectUndelivered(items, []uuid.UUID{delivered.ID}); err == nil {
		t.Error("already delivered line must be rejected")
	}
}

func TestSelectUndeliveredRejectsRepeatedLine(t *testing.T) {
	a := database.PurchaseItem{ID: uuid.New()}
	b := database.PurchaseItem{ID: uuid.New()}
	items := []database.PurchaseItem{a, b}

	// A repeated id would count line A twice toward closing the purchase
	// and split freight against the same stale row twice.
	_, err := selectUndelivered(items, []uuid.UUID{a.ID, a.ID})
	if err == nil {
		t.Fatal("repeated line id must be rejected")
	}
	if !strings.Contains(err.Error(), "more than once") {
		t.Errorf("unexpected error: %v", err)
	}
}
