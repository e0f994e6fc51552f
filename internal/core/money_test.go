package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	ok := map[string]string{
		"12.34":  "12.34",
		"12,34":  "12.34",
		"12.345": "12.35",
		"12.344": "12.34",
		"0.01":   "0.01",
		"1":      "1",
		"  7,5 ": "7.5",
		"0":      "0",
	}
	for in, want := range ok {
		got, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}

	bad := []string{"", "abc", "-1", "+1", "1.2.3", "1e3", "1,2,3"}
	for _, in := range bad {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("3.5")); got != "3.50" {
		t.Fatalf("FormatAmount = %q, want 3.50", got)
	}
}
