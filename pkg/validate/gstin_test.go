package validate

import "testing"

func TestGSTIN(t *testing.T) {
	valid := []string{
		"",                // not provided
		"27AAPFU0939F1ZV", // typical registration
		"07ABCDE1234F2Z5",
		"29AAACB2894G1ZK",
		"09AAAAA0000A1Z0",
	}
	for _, s := range valid {
		if !GSTIN(s) {
			t.Errorf("GSTIN(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"27AAPFU0939F1Z",    // 14 chars
		"27AAPFU0939F1ZVX",  // 16 chars
		"27aapfu0939f1zv",   // lowercase
		"2XAAPFU0939F1ZV",   // letter in state code
		"27AAPF40939F1ZV",   // digit in PAN letters
		"27AAPFUX939F1ZV",   // letter in PAN digits
		"27AAPFU09391F1V",   // 'Z' missing at position 14
		"27AAPFU0939F1YV",   // wrong literal
		"27AAPFU0939F1Z-",   // bad check char
		" 27AAPFU0939F1ZV",  // leading space
		"27AAPFU0939F1ZV ",  // trailing space
	}
	for _, s := range invalid {
		if GSTIN(s) {
			t.Errorf("GSTIN(%q) = true, want false", s)
		}
	}
}
