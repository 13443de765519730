package shamela

import (
	"fmt"
	"regexp"
	"strings"
)

// NotesFileName is the in-book document all note references point to.
const NotesFileName = "endnotes.xhtml"

var (
	supAnchorRe = regexp.MustCompile(`(?i)<sup[^>]*>\s*<a[^>]*>([^<]+)</a>\s*</sup>`)
	supBareRe   = regexp.MustCompile(`(?i)<sup[^>]*>\s*([^<]+?)\s*</sup>`)
	refParenRe  = regexp.MustCompile(`\(\s*([0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+)\s*\)`)
	refBrackRe  = regexp.MustCompile(`\[\s*([0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+)\s*\]`)

	asciiNumRe = regexp.MustCompile(`^[0-9]+$`)
)

func noteAnchor(gid int) string {
	return fmt.Sprintf(`<sup><a id="ref-%d" href="%s#note-%d">%d</a></sup>`, gid, NotesFileName, gid, gid)
}

// refNumber reduces the visible text of a candidate reference to its ASCII
// note number, "" when the text is not a plain numeral.
func refNumber(s string) string {
	s = strings.TrimSpace(NormalizeText(s))
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = ToASCIIDigits(strings.TrimSpace(s))
	if !asciiNumRe.MatchString(s) {
		return ""
	}
	return s
}

// LinkNoteRefs rewrites in-text note references to canonical superscripted
// links into the endnotes document. numbers maps a chapter-local note number
// to its global id; references to numbers without a note are left untouched.
// Passes run in fixed order so already rewritten references never match again:
// superscripted links, bare superscripts, then parenthesized and bracketed
// numerals in running text.
func LinkNoteRefs(fragment string, numbers map[string]int) string {
	if len(numbers) == 0 {
		return fragment
	}
	replace := func(match, inner string) string {
		num := refNumber(inner)
		if num == "" {
			return match
		}
		gid, ok := numbers[num]
		if !ok {
			return match
		}
		return noteAnchor(gid)
	}

	fragment = supAnchorRe.ReplaceAllStringFunc(fragment, func(m string) string {
		return replace(m, supAnchorRe.FindStringSubmatch(m)[1])
	})
	fragment = supBareRe.ReplaceAllStringFunc(fragment, func(m string) string {
		return replace(m, supBareRe.FindStringSubmatch(m)[1])
	})
	fragment = refParenRe.ReplaceAllStringFunc(fragment, func(m string) string {
		return replace(m, refParenRe.FindStringSubmatch(m)[1])
	})
	fragment = refBrackRe.ReplaceAllStringFunc(fragment, func(m string) string {
		return replace(m, refBrackRe.FindStringSubmatch(m)[1])
	})
	return fragment
}
