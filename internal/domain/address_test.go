package domain

import (
	"strings"
	"testing"
)

func TestValidAddress(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"lowercase hex", valid, true},
		{"uppercase hex", "0x" + strings.Repeat("AB", 32), true},
		{"mixed case", "0x" + strings.Repeat("aB", 32), true},
		{"empty", "", false},
		{"missing prefix", strings.Repeat("ab", 33), false},
		{"wrong prefix", "1x" + strings.Repeat("ab", 32), false},
		{"too short", valid[:65], false},
		{"too long", valid + "a", false},
		{"non-hex character", "0x" + strings.Repeat("ab", 31) + "zz", false},
		{"whitespace", "0x" + strings.Repeat("ab", 31) + " b", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidAddress(tc.in); got != tc.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncateAddress(t *testing.T) {
	addr := "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	if got, want := TruncateAddress(addr), "0x123456...cdef"; got != want {
		t.Errorf("TruncateAddress = %q, want %q", got, want)
	}
	if got := TruncateAddress("0x1234"); got != "0x1234" {
		t.Errorf("short address changed: %q", got)
	}
}
