package stockledger

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func TestAggregateSumsPerBucket(t *testing.T) {
	productID := uuid.New()
	clientID := uuid.New()
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	stocks := []database.StockRecord{
		{ProductID: productID, ClientID: nil, Quantity: dec("40"), TotalValue: dec("2000"), LastReceivedAt: &t2},
		{ProductID: productID, ClientID: nil, Quantity: dec("60"), TotalValue: dec("3000"), LastReceivedAt: &t1},
		{ProductID: productID, ClientID: &clientID, Quantity: dec("5"), TotalValue: dec("400")},
	}
	demands := []database.DemandRecord{
		{ProductID: productID, ClientID: nil, QtyOutstanding: dec("30"), LastChangeAt: &t1},
	}

	groups := Aggregate(stocks, demands)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	pooled := groups[GroupKey{ProductID: productID, Scope: Generic()}]
	if pooled == nil {
		t.Fatal("pooled group missing")
	}
	if !pooled.Available.Equal(dec("100")) {
		t.Errorf("pooled available = %s, want 100", pooled.Available)
	}
	if !pooled.Demand.Equal(dec("30")) {
		t.Errorf("pooled demand = %s, want 30", pooled.Demand)
	}
	if !pooled.NetAvailable().Equal(dec("70")) {
		t.Errorf("pooled net = %s, want 70", pooled.NetAvailable())
	}
	if !pooled.AvgUnitCost().Equal(dec("50")) {
		t.Errorf("pooled avg cost = %s, want 50", pooled.AvgUnitCost())
	}
	if pooled.LastReceivedAt == nil || !pooled.LastReceivedAt.Equal(t2) {
		t.Errorf("pooled last received = %v, want %v (latest wins)", pooled.LastReceivedAt, t2)
	}

	scoped := groups[GroupKey{ProductID: productID, Scope: ForClient(clientID)}]
	if scoped == nil {
		t.Fatal("client-scoped group missing")
	}
	if !scoped.Available.Equal(dec("5")) || !scoped.Demand.IsZero() {
		t.Errorf("scoped group = %+v", scoped)
	}
	if scoped.LastReceivedAt != nil {
		t.Error("scoped group without timestamps should keep nil")
	}
}

func TestAggregateShortageAndEmptyBucket(t *testing.T) {
	productID := uuid.New()

	groups := Aggregate(nil, []database.DemandRecord{
		{ProductID: productID, ClientID: nil, QtyOutstanding: dec("12")},
	})
	g := groups[GroupKey{ProductID: productID, Scope: Generic()}]
	if g == nil {
		t.Fatal("demand-only group missing")
	}
	if !g.NetAvailable().Equal(dec("-12")) {
		t.Errorf("net = %s, want -12 (shortage)", g.NetAvailable())
	}
	if !g.AvgUnitCost().IsZero() {
		t.Errorf("avg cost of empty bucket = %s, want 0", g.AvgUnitCost())
	}
}

func TestLookupFallsBackToPool(t *testing.T) {
	productID := uuid.New()
	clientID := uuid.New()
	otherProduct := uuid.New()

	groups := Aggregate([]database.StockRecord{
		{ProductID: productID, ClientID: nil, Quantity: dec("80"), TotalValue: dec("800")},
	}, nil)

	// Exact scope missing: degrade to the pooled figure.
	g := Lookup(groups, productID, ForClient(clientID))
	if g == nil || !g.Available.Equal(dec("80")) {
		t.Fatalf("expected fallback to pooled bucket, got %+v", g)
	}

	// Never fall back across products.
	if g := Lookup(groups, otherProduct, ForClient(clientID)); g != nil {
		t.Errorf("lookup of unknown product = %+v, want nil", g)
	}
}

func TestLookupPrefersExactScope(t *testing.T) {
	productID := uuid.New()
	clientID := uuid.New()

	groups := Aggregate([]database.StockRecord{
		{ProductID: productID, ClientID: nil, Quantity: dec("80"), TotalValue: dec("800")},
		{ProductID: productID, ClientID: &clientID, Quantity: dec("3"), TotalValue: dec("60")},
	}, nil)

	g := Lookup(groups, productID, ForClient(clientID))
	if g == nil || !g.Available.Equal(dec("3")) {
		t.Fatalf("expected exact client bucket, got %+v", g)
	}
}
