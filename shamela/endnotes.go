package shamela

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	hameshRe = regexp.MustCompile(`(?i)(?:<hr[^>]*>\s*)?<p[^>]*class="[^"]*\bhamesh\b[^"]*"[^>]*>([\s\S]*?)</p>`)
	lineRe   = regexp.MustCompile(`(?i)<br\s*/?>`)

	noteParenRe = regexp.MustCompile(`^\s*[(\x{FD3E}]\s*([0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+)\s*[)\x{FD3F}]\s*(.+)$`)
	noteSepRe   = regexp.MustCompile(`^\s*([0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+)\s*[.\-–—:)،]\s*(.+)$`)
)

// ExtractEndnotes removes every footnote block from a chapter fragment and
// parses the notes out of it. The returned fragment is the body with the
// blocks cut out verbatim, notes come back numerically ordered when every
// number parses, otherwise in appearance order. Numbers are translated to
// ASCII digits and deduplicated, first occurrence wins. A line that does not
// start a new note continues the previous one.
func ExtractEndnotes(fragment string) (string, []LocalNote) {
	matches := hameshRe.FindAllStringSubmatchIndex(fragment, -1)
	if len(matches) == 0 {
		return fragment, nil
	}

	var (
		rest  strings.Builder
		prev  int
		texts = make(map[string]string)
		order []string
	)

	add := func(num string, lines []string) {
		text := NormalizeText(strings.Join(lines, " "))
		if num == "" || text == "" {
			return
		}
		if _, dup := texts[num]; dup {
			return
		}
		texts[num] = text
		order = append(order, num)
	}

	for _, m := range matches {
		rest.WriteString(fragment[prev:m[0]])
		prev = m[1]

		block := fragment[m[2]:m[3]]
		var (
			curNum   string
			curLines []string
		)
		for _, line := range lineRe.Split(block, -1) {
			line = strings.TrimSpace(tagStripRe.ReplaceAllString(line, " "))
			if line == "" {
				continue
			}
			var num, text string
			if sm := noteParenRe.FindStringSubmatch(line); sm != nil {
				num, text = sm[1], sm[2]
			} else if sm := noteSepRe.FindStringSubmatch(line); sm != nil {
				num, text = sm[1], sm[2]
			}
			if num == "" {
				if curNum != "" {
					curLines = append(curLines, line)
				}
				continue
			}
			add(curNum, curLines)
			curNum = ToASCIIDigits(num)
			curLines = []string{text}
		}
		add(curNum, curLines)
	}
	rest.WriteString(fragment[prev:])

	if len(order) == 0 {
		return rest.String(), nil
	}
	nums := make(map[string]int, len(order))
	allNumeric := true
	for _, n := range order {
		v, err := strconv.Atoi(n)
		if err != nil {
			allNumeric = false
			break
		}
		nums[n] = v
	}
	if allNumeric {
		sort.SliceStable(order, func(i, j int) bool { return nums[order[i]] < nums[order[j]] })
	}
	notes := make([]LocalNote, 0, len(order))
	for _, n := range order {
		notes = append(notes, LocalNote{Number: n, Text: texts[n]})
	}
	return rest.String(), notes
}
