package shamela

import (
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Directionality controls and zero-width marks that leak from the site markup.
var bidiControls = map[rune]struct{}{
	'\u200e': {}, // LRM
	'\u200f': {}, // RLM
	'\u200b': {}, // ZWSP
	'\u200c': {}, // ZWNJ
	'\u200d': {}, // ZWJ
	'\u202a': {}, // LRE
	'\u202b': {}, // RLE
	'\u202c': {}, // PDF
	'\u202d': {}, // LRO
	'\u202e': {}, // RLO
	'\u2066': {}, // LRI
	'\u2067': {}, // RLI
	'\u2068': {}, // FSI
	'\u2069': {}, // PDI
	'\ufeff': {}, // BOM
}

// ToASCIIDigits maps Arabic-Indic digits to their ASCII counterparts leaving
// everything else untouched.
func ToASCIIDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 0x0660 && r <= 0x0669 { // arabic-indic
			return '0' + (r - 0x0660)
		}
		if r >= 0x06f0 && r <= 0x06f9 { // extended arabic-indic
			return '0' + (r - 0x06f0)
		}
		return r
	}, s)
}

// NormalizeText canonicalizes visible text taken from the site: decodes
// character references, drops bidi controls and tatweel, applies NFKC and
// collapses runs of whitespace. Result carries no leading or trailing space.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = html.UnescapeString(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u00a0', '\u202f':
			b.WriteRune(' ')
		case '\u00ad', '\u0640':
			// soft hyphen and tatweel carry no meaning in extracted text
		default:
			if _, drop := bidiControls[r]; !drop {
				b.WriteRune(r)
			}
		}
	}
	s = norm.NFKC.String(b.String())
	return strings.Join(strings.Fields(s), " ")
}
