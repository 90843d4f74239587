package sheetdir

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// The directory sheet is maintained by hand in Romanian, so lookups must
// survive missing diacritics and inconsistent casing ("Școala" vs "scoala").
var collator = collate.New(language.Romanian, collate.IgnoreCase, collate.IgnoreDiacritics)

func namesEqual(a, b string) bool {
	return collator.CompareString(strings.TrimSpace(a), strings.TrimSpace(b)) == 0
}

// canonicalName returns the entry of candidates that matches name, or ""
// when none does.
func canonicalName(name string, candidates []string) string {
	for _, candidate := range candidates {
		if namesEqual(name, candidate) {
			return candidate
		}
	}
	return ""
}

// truthy reports whether a sheet cell marks participation.
func truthy(cell string) bool {
	switch strings.ToUpper(strings.TrimSpace(cell)) {
	case "TRUE", "DA", "X", "1", "YES":
		return true
	}
	return false
}
