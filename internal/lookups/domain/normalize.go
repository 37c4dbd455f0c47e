package domain

import "strings"

// StripByteQuoting removes Python byte-string notation (b'...' or
// b"...") that some provider SDKs leak into JSON string values. Case is
// preserved; use NormalizeVendorToken for comparison tokens.
func StripByteQuoting(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= 3 && (token[0] == 'b' || token[0] == 'B') {
		rest := token[1:]
		if (rest[0] == '\'' && rest[len(rest)-1] == '\'') ||
			(rest[0] == '"' && rest[len(rest)-1] == '"') {
			return rest[1 : len(rest)-1]
		}
	}
	return token
}

// NormalizeVendorToken cleans a vendor status or event string before any
// comparison: byte-string quoting stripped, whitespace trimmed, case
// folded. Every status read in the pipeline goes through this single
// function; the quirk is handled nowhere else.
func NormalizeVendorToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(StripByteQuoting(raw)))
}
