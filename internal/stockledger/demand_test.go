package stockledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOutstandingOrderLifecycle(t *testing.T) {
	// Creating an order raises the bucket, converting or cancelling it
	// releases the same quantity: 0 -> 10 -> 0.
	raised := raiseOutstanding(decimal.Zero, dec("10"))
	if !raised.Equal(dec("10")) {
		t.Fatalf("raise = %s, want 10", raised)
	}
	if got := releaseOutstanding(raised, dec("10")); !got.IsZero() {
		t.Errorf("release after raise = %s, want 0", got)
	}
}

func TestReleaseOutstandingClampsAtZero(t *testing.T) {
	tests := []struct {
		current, qty, want string
	}{
		{"10", "4", "6"},
		{"10", "10", "0"},
		{"5", "10", "0"},  // over-release floors at zero
		{"0", "3", "0"},   // nothing outstanding stays zero
		{"2.5", "2.5", "0"},
	}
	for _, tt := range tests {
		got := releaseOutstanding(dec(tt.current), dec(tt.qty))
		if !got.Equal(dec(tt.want)) {
			t.Errorf("releaseOutstanding(%s, %s) = %s, want %s", tt.current, tt.qty, got, tt.want)
		}
		if got.IsNegative() {
			t.Errorf("releaseOutstanding(%s, %s) went negative", tt.current, tt.qty)
		}
	}
}

func TestRaiseOutstandingAccumulates(t *testing.T) {
	total := decimal.Zero
	for _, qty := range []string{"3", "7", "0.5"} {
		total = raiseOutstanding(total, dec(qty))
	}
	if !total.Equal(dec("10.5")) {
		t.Errorf("accumulated raise = %s, want 10.5", total)
	}
}
