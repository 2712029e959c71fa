package numbering

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestFormatCode(t *testing.T) {
	got := FormatCode(PrefixOrder, 2025, 42)
	if got != "ORD-2025-000042" {
		t.Errorf("FormatCode = %q", got)
	}

	re := regexp.MustCompile(`^ORD-\d{4}-\d{6}$`)
	for _, seq := range []int{1, 999, 123456, 999999} {
		if code := FormatCode(PrefixOrder, 2025, seq); !re.MatchString(code) {
			t.Errorf("code %q does not match required format", code)
		}
	}
}

func TestParseSequence(t *testing.T) {
	tests := []struct {
		code   string
		prefix string
		year   int
		want   int
		ok     bool
	}{
		{"ORD-2025-000042", PrefixOrder, 2025, 42, true},
		{"ORD-2025-999999", PrefixOrder, 2025, 999999, true},
		{"ORD-2024-000042", PrefixOrder, 2025, 0, false},
		{"PUR-2025-000042", PrefixOrder, 2025, 0, false},
		{"ORD-2025-xyz", PrefixOrder, 2025, 0, false},
		{"", PrefixOrder, 2025, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSequence(tt.code, tt.prefix, tt.year)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSequence(%q) = (%d, %v), want (%d, %v)", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSequenceRoundTripIsMonotonic(t *testing.T) {
	prev := 0
	for seq := 1; seq <= 3000; seq += 7 {
		code := FormatCode(PrefixSale, 2025, seq)
		got, ok := ParseSequence(code, PrefixSale, 2025)
		if !ok || got != seq {
			t.Fatalf("round trip of %d gave (%d, %v)", seq, got, ok)
		}
		if got <= prev {
			t.Fatalf("sequence not increasing: %d after %d", got, prev)
		}
		prev = got
	}
}

func TestBusinessYear(t *testing.T) {
	// 2024-12-31 20:30 UTC is already 2025-01-01 02:00 in IST.
	late := time.Date(2024, 12, 31, 20, 30, 0, 0, time.UTC)
	if got := BusinessYear(late); got != 2025 {
		t.Errorf("BusinessYear(%v) = %d, want 2025", late, got)
	}
	mid := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	if got := BusinessYear(mid); got != 2025 {
		t.Errorf("BusinessYear(%v) = %d, want 2025", mid, got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil is not a violation")
	}
	if !IsUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Error("gorm.ErrDuplicatedKey must be recognised")
	}
	if !IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_code" (SQLSTATE 23505)`)) {
		t.Error("raw postgres duplicate key error must be recognised")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Error("unrelated errors are not violations")
	}
}
