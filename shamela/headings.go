package shamela

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	headingOpenRe = regexp.MustCompile(`(?i)<h([23])\b[^>]*>`)
	sectionIDRe   = regexp.MustCompile(`(?i)<h[23][^>]*\bid="(sec-[^"]+)"`)
	refIDRe       = regexp.MustCompile(`\bid="ref-(\d+)"`)
)

// AddHeadingAnchors rewrites every h2/h3 element of a chapter fragment to
// carry a stable id of the form sec-<chapter>-<n>, n counted in document
// order, and returns the sub-navigation entries. Headings with no visible
// text are left alone. Original heading attributes are dropped.
func AddHeadingAnchors(fragment string, chapterID int) (string, []SubHeading) {
	opens := headingOpenRe.FindAllStringSubmatchIndex(fragment, -1)
	if len(opens) == 0 {
		return fragment, nil
	}

	var (
		out  strings.Builder
		subs []SubHeading
		prev int
		n    int
	)
	for _, m := range opens {
		if m[0] < prev { // heading inside a previously consumed heading
			continue
		}
		level := fragment[m[2]:m[3]]
		closeTag := "</h" + level + ">"
		end := strings.Index(strings.ToLower(fragment[m[1]:]), closeTag)
		if end < 0 {
			continue
		}
		inner := fragment[m[1] : m[1]+end]
		title := NormalizeText(tagStripRe.ReplaceAllString(inner, " "))
		if title == "" {
			continue
		}
		n++
		id := fmt.Sprintf("sec-%d-%d", chapterID, n)
		out.WriteString(fragment[prev:m[0]])
		out.WriteString(`<h` + level + ` id="` + id + `">` + inner + `</h` + level + `>`)
		prev = m[1] + end + len(closeTag)
		subs = append(subs, SubHeading{ID: id, Title: title})
	}
	out.WriteString(fragment[prev:])
	return out.String(), subs
}

// NearestSections maps every linked note reference in a fragment to the
// closest preceding sub-heading anchor. References before the first heading
// are absent from the result.
func NearestSections(fragment string) map[int]string {
	type mark struct {
		pos int
		id  string
	}
	var heads []mark
	for _, m := range sectionIDRe.FindAllStringSubmatchIndex(fragment, -1) {
		heads = append(heads, mark{pos: m[0], id: fragment[m[2]:m[3]]})
	}
	if len(heads) == 0 {
		return nil
	}

	res := make(map[int]string)
	for _, m := range refIDRe.FindAllStringSubmatchIndex(fragment, -1) {
		gid, err := strconv.Atoi(fragment[m[2]:m[3]])
		if err != nil {
			continue
		}
		at := sort.Search(len(heads), func(i int) bool { return heads[i].pos > m[0] }) - 1
		if at >= 0 {
			res[gid] = heads[at].id
		}
	}
	return res
}
