package shamela

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Class token marking the main text container on chapter pages.
const sentinelClass = "nass"

// Structural and inline tags allowed to survive into the output fragment.
// Everything else is unwrapped, text content kept.
var allowedTags = map[string]struct{}{
	"p": {}, "div": {}, "span": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {},
	"h5": {}, "h6": {}, "blockquote": {}, "ul": {}, "ol": {}, "li": {},
	"table": {}, "tr": {}, "td": {}, "th": {}, "thead": {}, "tbody": {},
	"pre": {}, "code": {}, "figure": {}, "figcaption": {},
	"em": {}, "strong": {}, "b": {}, "u": {}, "sup": {}, "sub": {}, "a": {},
	"br": {}, "hr": {}, "img": {},
}

// Attributes preserved on allowed tags, in emission order.
var keptAttrs = []string{"id", "class", "href", "src", "alt"}

// Void elements are emitted self-closed and never participate in depth or
// stack bookkeeping.
var voidTags = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {},
	"img": {}, "input": {}, "link": {}, "meta": {}, "param": {},
	"source": {}, "track": {}, "wbr": {},
}

// Subtrees dropped wholesale: decorations, icons, interactive controls.
func isJunkTag(tag string, classes []string) bool {
	if tag == "i" || tag == "button" || tag == "script" || tag == "style" {
		return true
	}
	for _, c := range classes {
		if strings.HasPrefix(c, "fa") || strings.HasPrefix(c, "btn") {
			return true
		}
	}
	return false
}

// Extractor pulls the marked text container(s) out of a chapter page and
// renders them as a well-formed fragment restricted to allowedTags.
type Extractor struct {
	// Combine concatenates all matching containers in document order.
	// When false only the container with the most collapsed text survives,
	// earliest wins on a tie.
	Combine bool
}

func NewExtractor(combine bool) *Extractor {
	return &Extractor{Combine: combine}
}

// Extract runs a single forward pass over the page markup. It never fails:
// truncated input produces whatever containers completed before the cut,
// force-closing tags left open. Empty string means no container was found.
func (e *Extractor) Extract(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))

	var (
		candidates []string
		buf        strings.Builder
		stack      []string // open allowed non-void tags inside the capture
		depth      int      // non-void element depth inside the container, 0 = not capturing
		skipDepth  int      // non-void element depth inside a junk subtree
	)

	finalize := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			buf.WriteString("</" + stack[i] + ">")
		}
		stack = stack[:0]
		if s := strings.TrimSpace(buf.String()); s != "" {
			candidates = append(candidates, s)
		}
		buf.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if depth > 0 {
				finalize()
			}
			return e.pick(candidates)

		case html.StartTagToken, html.SelfClosingTagToken:
			tag, attrs := readTag(z)
			_, isVoid := voidTags[tag]
			selfClosing := tt == html.SelfClosingTagToken || isVoid

			if depth == 0 {
				if tag == "div" && strings.Contains(attrs["class"], sentinelClass) {
					depth = 1
					skipDepth = 0
				}
				continue
			}

			if skipDepth > 0 {
				if !selfClosing {
					skipDepth++
					depth++
				}
				continue
			}
			if isJunkTag(tag, strings.Fields(attrs["class"])) {
				if !selfClosing {
					skipDepth = 1
					depth++
				}
				continue
			}

			if !selfClosing {
				depth++
			}
			if _, ok := allowedTags[tag]; !ok {
				continue
			}
			writeOpenTag(&buf, tag, attrs, selfClosing)
			if !selfClosing {
				stack = append(stack, tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if depth == 0 {
				continue
			}
			if _, isVoid := voidTags[tag]; isVoid {
				continue
			}
			depth--
			if skipDepth > 0 {
				skipDepth--
				if depth == 0 {
					finalize()
				}
				continue
			}
			if _, ok := allowedTags[tag]; ok {
				closeTag(&buf, &stack, tag)
			}
			if depth == 0 {
				finalize()
			}

		case html.TextToken:
			if depth > 0 && skipDepth == 0 {
				buf.WriteString(html.EscapeString(string(z.Text())))
			}
		}
	}
}

func (e *Extractor) pick(candidates []string) string {
	switch {
	case len(candidates) == 0:
		return ""
	case e.Combine:
		return strings.TrimSpace(strings.Join(candidates, "\n"))
	}
	best := 0
	bestLen := collapsedLen(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if l := collapsedLen(candidates[i]); l > bestLen {
			best, bestLen = i, l
		}
	}
	return candidates[best]
}

func collapsedLen(s string) int {
	return len(strings.Join(strings.Fields(tagStripRe.ReplaceAllString(s, " ")), " "))
}

func readTag(z *html.Tokenizer) (string, map[string]string) {
	name, hasAttr := z.TagName()
	attrs := map[string]string{}
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[strings.ToLower(string(k))] = string(v)
	}
	return strings.ToLower(string(name)), attrs
}

func writeOpenTag(buf *strings.Builder, tag string, attrs map[string]string, selfClosing bool) {
	buf.WriteByte('<')
	buf.WriteString(tag)
	for _, k := range keptAttrs {
		v, ok := attrs[k]
		if !ok || v == "" {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteString(`="`)
		buf.WriteString(html.EscapeString(v))
		buf.WriteByte('"')
	}
	if selfClosing {
		buf.WriteByte('/')
	}
	buf.WriteByte('>')
}

// closeTag force-closes everything opened after tag to keep output
// well-formed, then closes tag itself. A close with no matching open is
// dropped.
func closeTag(buf *strings.Builder, stack *[]string, tag string) {
	s := *stack
	at := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == tag {
			at = i
			break
		}
	}
	if at < 0 {
		return
	}
	for i := len(s) - 1; i >= at; i-- {
		buf.WriteString("</" + s[i] + ">")
	}
	*stack = s[:at]
}

var (
	navBlockRe = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*\bs-nav\b[^"]*"[^>]*>.*?</div>`)
	nassDivRe  = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*` + sentinelClass)
)

// FallbackContent is the last resort when no marked container was extracted,
// typically because the page content arrived entity-escaped. The page is
// unescaped, the navigation block stripped and the extractor rerun when a
// marked container surfaces. Returns "" when the page carries none.
func FallbackContent(src string) string {
	src = html.UnescapeString(src)
	src = navBlockRe.ReplaceAllString(src, "")
	if !nassDivRe.MatchString(src) {
		return ""
	}
	return (&Extractor{Combine: true}).Extract(src)
}
