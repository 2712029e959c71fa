package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBalance(t *testing.T) {
	tests := []struct {
		total, paid, want string
	}{
		{"1180.00", "0", "1180.00"},
		{"1180.00", "500", "680.00"},
		{"1180.00", "1180.00", "0"},
		{"1180.00", "1200.00", "0"}, // overpayment floors at zero
	}
	for _, tt := range tests {
		if got := Balance(dec(tt.total), dec(tt.paid)); !got.Equal(dec(tt.want)) {
			t.Errorf("Balance(%s, %s) = %s, want %s", tt.total, tt.paid, got, tt.want)
		}
	}
}

func TestClassifyAtTolerance(t *testing.T) {
	tests := []struct {
		total, paid string
		want        string
	}{
		{"100.00", "100.00", StatusPaid},
		{"100.00", "99.995", StatusPaid},  // within 0.009
		{"100.00", "99.991", StatusPaid},  // exactly at the boundary
		{"100.00", "99.99", StatusPending}, // 0.01 short
		{"100.00", "50.00", StatusPending},
		{"100.00", "0", StatusPending},
		{"100.00", "101.00", StatusPaid},
		{"0", "0", StatusPaid},
	}
	for _, tt := range tests {
		if got := Classify(dec(tt.total), dec(tt.paid)); got != tt.want {
			t.Errorf("Classify(%s, %s) = %s, want %s", tt.total, tt.paid, got, tt.want)
		}
	}
}
