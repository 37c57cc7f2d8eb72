package domain

// Ledger addresses are "0x" followed by 64 hexadecimal characters.
const (
	addressPrefix = "0x"
	addressHexLen = 64

	// AddressLen is the total length of a well-formed address string.
	AddressLen = len(addressPrefix) + addressHexLen
)

// ValidAddress reports whether s is a well-formed ledger address.
// Addresses are treated as opaque tokens everywhere else; this is the
// only place that knows their shape.
func ValidAddress(s string) bool {
	if len(s) != AddressLen {
		return false
	}
	if s[0] != '0' || s[1] != 'x' {
		return false
	}
	for i := 2; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// TruncateAddress shortens an address for human-readable output:
// "0x123456...cdef". Short strings are returned unchanged.
func TruncateAddress(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:8] + "..." + s[len(s)-4:]
}
