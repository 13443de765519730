package shamela

import (
	"strings"

	"golang.org/x/net/html"
)

// Anchor pairs a hyperlink target with its normalized visible text.
type Anchor struct {
	Href string
	Text string
}

// CollectAnchors scans markup left to right and returns every <a> element
// together with the text it encloses. The scan is total: malformed input
// yields whatever anchors were completed before the breakage, never an error.
// Nested anchors are not expected on the site and are not tracked, an inner
// <a> simply restarts collection.
func CollectAnchors(src string) []Anchor {
	z := html.NewTokenizer(strings.NewReader(src))
	var (
		res  []Anchor
		inA  bool
		href string
		text strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return res
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			inA = true
			href = ""
			text.Reset()
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) == "href" {
					href = strings.TrimSpace(string(v))
				}
			}
		case html.TextToken:
			if inA {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && inA {
				res = append(res, Anchor{Href: href, Text: NormalizeText(text.String())})
				inA = false
				href = ""
				text.Reset()
			}
		}
	}
}
