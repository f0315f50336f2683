// Package parser holds helpers shared by the format readers in its
// subpackages.
package parser

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// NormalizeName maps a source column header to the form used for lookups:
// BOM stripped, NFKC-normalized, trimmed and lowercased.
func NormalizeName(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	s = norm.NFKC.String(s)
	// Casers are stateful, so each call gets its own.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// NormalizeNames applies NormalizeName to every header in place and returns
// the slice.
func NormalizeNames(names []string) []string {
	for i, n := range names {
		names[i] = NormalizeName(n)
	}
	return names
}
