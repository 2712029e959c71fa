package numbering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Document code prefixes
const (
	PrefixOrder    = "ORD"
	PrefixPurchase = "PUR"
	PrefixSale     = "SAL"
)

// MaxAttempts bounds the optimistic insert retry loop when two callers
// race for the same sequence number.
const MaxAttempts = 5

// business calendar runs on Indian local time
var businessTZ = mustLoadIST()

func mustLoadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// BusinessYear returns the calendar year of t in the business timezone.
func BusinessYear(t time.Time) int {
	return t.In(businessTZ).Year()
}

// FormatCode renders a document code, e.g. ORD-2025-000042.
func FormatCode(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// ParseSequence extracts the trailing sequence number from a code with
// the given prefix and year; ok is false when the code does not match.
func ParseSequence(code, prefix string, year int) (int, bool) {
	head := fmt.Sprintf("%s-%04d-", prefix, year)
	if !strings.HasPrefix(code, head) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(code, head))
	if err != nil {
		return 0, false
	}
	return seq, true
}

// NextSequence reads the current maximum code for (prefix, year) from the
// given table and returns the next sequence number. Soft-deleted rows are
// included so their codes are never reissued.
func NextSequence(db *gorm.DB, table, prefix string, year int) (int, error) {
	var maxCode string
	err := db.Table(table).
		Where("code LIKE ?", fmt.Sprintf("%s-%04d-%%", prefix, year)).
		Order("code DESC").
		Limit(1).
		Pluck("code", &maxCode).Error
	if err != nil {
		return 0, err
	}
	if maxCode == "" {
		return 1, nil
	}
	seq, ok := ParseSequence(maxCode, prefix, year)
	if !ok {
		return 0, fmt.Errorf("malformed code %q in table %s", maxCode, table)
	}
	return seq + 1, nil
}

// IsUniqueViolation reports whether err is a uniqueness conflict from the
// database, the signal to bump the sequence and retry the insert.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
