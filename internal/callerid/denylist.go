package callerid

import (
	"strings"
	"unicode"
)

// genericLabels are values that look like a name but carry no identity.
// Matching happens on the normalized form (trimmed, case-folded, punctuation
// stripped, whitespace collapsed).
var genericLabels = map[string]struct{}{
	"onbekende beller": {},
	"unknown caller":   {},
	"onbekend":         {},
	"unknown":          {},
	"anoniem":          {},
	"anonymous":        {},
	"beller":           {},
	"caller":           {},
	"klant":            {},
	"customer":         {},
	"user":             {},
	"none":             {},
	"null":             {},
	"nil":              {},
	"na":               {},
	"n a":              {},
	"not available":    {},
	"niet beschikbaar": {},
	"geen naam":        {},
	"no name":          {},
	"geen":             {},
	"test":             {},
}

// normalizeLabel prepares a candidate name for denylist comparison:
// Unicode whitespace trim, case folding, punctuation stripped, inner
// whitespace collapsed to single spaces.
func normalizeLabel(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// Punctuation becomes a separator so "n/a" and "n.a." fold to "n a".
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// IsGenericLabel reports whether a candidate name normalizes to a generic
// placeholder and must be treated as absent.
func IsGenericLabel(raw string) bool {
	normalized := normalizeLabel(raw)
	if normalized == "" {
		return true
	}
	_, generic := genericLabels[normalized]
	return generic
}

// usableName returns the trimmed candidate when it is a real name,
// or "" when it is empty or generic.
func usableName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || IsGenericLabel(trimmed) {
		return ""
	}
	return trimmed
}
