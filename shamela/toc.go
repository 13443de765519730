package shamela

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

var (
	bookIDRe = regexp.MustCompile(`/book/(\d+)`)

	cardRe       = regexp.MustCompile(`بطاقة\s*الكتاب[\s\S]*?</h3>([\s\S]*?)<div[^>]*class="text-left`)
	authorPageRe = regexp.MustCompile(`صفحة\s*المؤلف:\s*\[\s*<a[^>]*>(.*?)</a>\s*\]`)
	anyBracketRe = regexp.MustCompile(`\[\s*<a[^>]*>(.*?)</a>\s*\]`)

	navActiveRe  = regexp.MustCompile(`<div[^>]*class="[^"]*s-nav[\s\S]*?<a[^>]*class="[^"]*active[^"]*"[^>]*>(.*?)</a>`)
	pageHeaderRe = regexp.MustCompile(`<section[^>]*page-header[\s\S]*?<h1[^>]*>([\s\S]*?)</h1>`)
	titleTagRe   = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
	siteSuffixRe = regexp.MustCompile(`\s*-\s*المكتبة الشاملة.*$`)

	nextArrowRe = regexp.MustCompile(`(?i)<a[^>]+href="([^"]+)"[^>]*>\s*&nbsp;&gt;&nbsp;\s*</a>`)

	tagStripRe = regexp.MustCompile(`<[^>]+>`)
)

// ExtractBookID pulls the numeric book identifier out of a book URL.
func ExtractBookID(bookURL string) (string, error) {
	m := bookIDRe.FindStringSubmatch(bookURL)
	if m == nil {
		return "", fmt.Errorf("unable to find book id in url: %s", bookURL)
	}
	return m[1], nil
}

// ParseTOC discovers chapter pages on the book index page. Entries come back
// in first-appearance order with dense 1-based Order values. An href already
// seen is skipped entirely, repeated in-page links carry no information.
// Distinct hrefs resolving to the same page id contribute their visible text
// as an alias of the first entry instead of a new one.
func ParseTOC(bookURL, indexHTML string) ([]TocEntry, error) {
	bookID, err := ExtractBookID(bookURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(bookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid book url %s: %w", bookURL, err)
	}
	base := parsed.Scheme + "://" + parsed.Host

	pageRe := regexp.MustCompile(`/book/` + bookID + `/(\d+)/?$`)

	var (
		entries []TocEntry
		byID    = make(map[int]int) // page id -> index in entries
		seen    = make(map[string]struct{})
	)
	for _, a := range CollectAnchors(indexHTML) {
		if a.Href == "" || a.Text == "" {
			continue
		}
		href := a.Href
		if strings.HasPrefix(href, "/") {
			href = base + href
		}
		m := pageRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}

		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if at, ok := byID[id]; ok {
			e := &entries[at]
			if a.Text != e.Title && !slices.Contains(e.Aliases, a.Text) {
				e.Aliases = append(e.Aliases, a.Text)
			}
			continue
		}
		byID[id] = len(entries)
		entries = append(entries, TocEntry{
			ID:    id,
			Order: len(entries) + 1,
			Title: a.Text,
			URL:   href,
		})
	}
	return entries, nil
}

// ParseBookMeta reads the book card from the index page. Missing fields stay
// empty, the title always gets a value.
func ParseBookMeta(indexHTML string) BookMeta {
	meta := BookMeta{
		Language:   "ar",
		Identifier: "urn:uuid:" + uuid.NewString(),
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML)); err == nil {
		meta.Title = NormalizeText(doc.Find("h1 a").First().Text())
		if meta.Title == "" {
			meta.Title = NormalizeText(doc.Find("h1").First().Text())
		}
	}
	if meta.Title == "" {
		if m := titleTagRe.FindStringSubmatch(indexHTML); m != nil {
			meta.Title = NormalizeText(siteSuffixRe.ReplaceAllString(m[1], ""))
		}
	}
	if meta.Title == "" {
		meta.Title = "كتاب من المكتبة الشاملة"
	}

	scope := indexHTML
	if m := cardRe.FindStringSubmatch(indexHTML); m != nil {
		scope = m[1]
	}
	meta.BookTitle = cardField(scope, "الكتاب")
	meta.Author = cardField(scope, "المؤلف")
	meta.Publisher = cardField(scope, "الناشر")
	meta.Edition = cardField(scope, "الطبعة")
	meta.Pages = cardField(scope, "عدد الصفحات")

	if m := authorPageRe.FindStringSubmatch(scope); m != nil {
		meta.AuthorPage = NormalizeText(m[1])
	}
	if meta.Author == "" {
		if m := anyBracketRe.FindStringSubmatch(scope); m != nil {
			meta.Author = NormalizeText(m[1])
		}
	}
	return meta
}

func cardField(scope, label string) string {
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `\s*:?\s*(.*?)<br\s*/?>`)
	m := re.FindStringSubmatch(scope)
	if m == nil {
		return ""
	}
	return NormalizeText(tagStripRe.ReplaceAllString(m[1], " "))
}

// ExtractPageTitle refines a chapter title from the chapter page itself:
// active breadcrumb first, then the page header, then the <title> element
// with the site suffix removed. Empty result means the index title stands.
func ExtractPageTitle(pageHTML string) string {
	if m := navActiveRe.FindStringSubmatch(pageHTML); m != nil {
		if t := NormalizeText(tagStripRe.ReplaceAllString(m[1], " ")); t != "" {
			return t
		}
	}
	if m := pageHeaderRe.FindStringSubmatch(pageHTML); m != nil {
		if t := NormalizeText(tagStripRe.ReplaceAllString(m[1], " ")); t != "" {
			return t
		}
	}
	if m := titleTagRe.FindStringSubmatch(pageHTML); m != nil {
		if t := NormalizeText(siteSuffixRe.ReplaceAllString(m[1], "")); t != "" {
			return t
		}
	}
	return ""
}

// NextPageID finds the forward pagination arrow on a chapter page and returns
// the page id it points to within the same book.
func NextPageID(pageHTML, bookID string) (int, bool) {
	m := nextArrowRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return 0, false
	}
	pageRe := regexp.MustCompile(`/book/` + bookID + `/(\d+)`)
	pm := pageRe.FindStringSubmatch(m[1])
	if pm == nil {
		return 0, false
	}
	id, err := strconv.Atoi(pm[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
