package stockledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSplitProportional(t *testing.T) {
	tests := []struct {
		name    string
		weights []string
		total   string
		want    []string
	}{
		{"two lines 300/700 at 50", []string{"300", "700"}, "50", []string{"15", "35"}},
		{"single line takes all", []string{"123.45"}, "50", []string{"50"}},
		{"remainder absorbed by last", []string{"1", "1", "1"}, "100", []string{"33.33", "33.33", "33.34"}},
		{"zero weights split evenly", []string{"0", "0"}, "10", []string{"5", "5"}},
		{"zero total", []string{"300", "700"}, "0", []string{"0", "0"}},
		{"uneven weights", []string{"250", "125", "625"}, "77.77", []string{"19.44", "9.72", "48.61"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = dec(w)
			}
			parts := SplitProportional(weights, dec(tt.total))
			if len(parts) != len(tt.want) {
				t.Fatalf("got %d parts, want %d", len(parts), len(tt.want))
			}
			sum := decimal.Zero
			for i, p := range parts {
				if !p.Equal(dec(tt.want[i])) {
					t.Errorf("part %d = %s, want %s", i, p, tt.want[i])
				}
				sum = sum.Add(p)
			}
			if !sum.Equal(dec(tt.total)) {
				t.Errorf("parts sum to %s, want exactly %s", sum, tt.total)
			}
		})
	}
}

func TestSplitProportionalAlwaysSumsExactly(t *testing.T) {
	// Sweeps of awkward totals against awkward weight mixes; the sum
	// invariant must hold regardless of rounding of individual shares.
	weightSets := [][]string{
		{"1", "1", "1", "1", "1", "1", "1"},
		{"0.01", "99.99", "33.33"},
		{"17", "19", "23", "29"},
	}
	totals := []string{"0.01", "1", "9.99", "100.01", "333.33"}

	for _, ws := range weightSets {
		weights := make([]decimal.Decimal, len(ws))
		for i, w := range ws {
			weights[i] = dec(w)
		}
		for _, total := range totals {
			parts := SplitProportional(weights, dec(total))
			sum := decimal.Zero
			for _, p := range parts {
				sum = sum.Add(p)
			}
			if !sum.Equal(dec(total)) {
				t.Errorf("weights %v total %s: parts sum %s", ws, total, sum)
			}
		}
	}
}

func TestSplitProportionalTinyTotalManyLines(t *testing.T) {
	// Ten equal lines sharing 0.15: each share rounds up to 0.02, so the
	// absorbing last share carries a negative correction. The exact-sum
	// invariant holds regardless.
	weights := make([]decimal.Decimal, 10)
	for i := range weights {
		weights[i] = dec("1")
	}

	parts := SplitProportional(weights, dec("0.15"))
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p)
	}
	if !sum.Equal(dec("0.15")) {
		t.Fatalf("parts sum to %s, want exactly 0.15", sum)
	}
	for i := 0; i < 9; i++ {
		if !parts[i].Equal(dec("0.02")) {
			t.Errorf("part %d = %s, want 0.02", i, parts[i])
		}
	}
	if !parts[9].Equal(dec("-0.03")) {
		t.Errorf("absorbing share = %s, want -0.03", parts[9])
	}
}

func TestPlanDeductionLargestFirst(t *testing.T) {
	rows := []database.StockRecord{
		{Quantity: dec("10"), TotalValue: dec("100")},
		{Quantity: dec("50"), TotalValue: dec("500")},
		{Quantity: dec("25"), TotalValue: dec("250")},
	}

	plan, err := PlanDeduction(rows, dec("60"))
	if err != nil {
		t.Fatalf("PlanDeduction: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("got %d steps, want 2", len(plan))
	}
	if !plan[0].Take.Equal(dec("50")) || !plan[0].Remove {
		t.Errorf("first step should fully consume the 50-row, got take %s remove %v", plan[0].Take, plan[0].Remove)
	}
	if !plan[1].Take.Equal(dec("10")) || plan[1].Remove {
		t.Errorf("second step should take 10 of the 25-row, got take %s remove %v", plan[1].Take, plan[1].Remove)
	}
}

func TestPlanDeductionExactRowIsRemoved(t *testing.T) {
	rows := []database.StockRecord{{Quantity: dec("30"), TotalValue: dec("90")}}
	plan, err := PlanDeduction(rows, dec("30"))
	if err != nil {
		t.Fatalf("PlanDeduction: %v", err)
	}
	if len(plan) != 1 || !plan[0].Remove {
		t.Error("exact consumption must remove the row instead of keeping a zero row")
	}
}

func TestPlanDeductionInsufficientStock(t *testing.T) {
	rows := []database.StockRecord{
		{Quantity: dec("10")},
		{Quantity: dec("5")},
	}
	if _, err := PlanDeduction(rows, dec("16")); err == nil {
		t.Error("expected error when rows cannot cover the quantity")
	}
	if _, err := PlanDeduction(nil, dec("1")); err == nil {
		t.Error("expected error for empty bucket")
	}
	if _, err := PlanDeduction(rows, dec("0")); err == nil {
		t.Error("expected error for non-positive quantity")
	}
}

func TestScaledValuePreservesAvgCost(t *testing.T) {
	// Selling 30 of 100 units valued 5000 leaves 70 units valued 3500.
	got := ScaledValue(dec("5000"), dec("100"), dec("70"))
	if !got.Equal(dec("3500")) {
		t.Errorf("ScaledValue = %s, want 3500", got)
	}

	oldCost := dec("5000").Div(dec("100"))
	newCost := got.Div(dec("70"))
	if !oldCost.Sub(newCost).Abs().LessThan(dec("0.0001")) {
		t.Errorf("average cost drifted: %s -> %s", oldCost, newCost)
	}

	if !ScaledValue(dec("100"), dec("0"), dec("0")).IsZero() {
		t.Error("zero old quantity should scale to zero value")
	}
}
