package models

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// NormalizeName bringt einen Zutatennamen in NFC-Form, löst Ligaturen auf
// und fasst Leerraum zusammen.
func NormalizeName(s string) string {
	s = ligatures.Replace(s)
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		normalized = s
	}
	return strings.Join(strings.Fields(normalized), " ")
}
