// Package shamela implements parsing of shamela.ws-style book pages: table of
// contents discovery, main text extraction, endnote collection and reference
// linking. It works on the raw page markup and produces well-formed restricted
// fragments ready for packaging.
package shamela

import "sbc/config"

// TocEntry is a single chapter reference discovered on the book index page.
// ID is the stable page identifier from the chapter URL, Order is the dense
// 1-based discovery order. Distinct index hrefs resolving to the same page
// contribute their visible text to Aliases.
type TocEntry struct {
	ID      int
	Order   int
	Title   string
	URL     string
	Aliases []string
}

// BookMeta describes the book as presented on the index page.
type BookMeta struct {
	Title      string // page heading, always present (falls back to a generic title)
	BookTitle  string // "الكتاب" card entry
	Author     string
	Publisher  string
	Edition    string
	Pages      string
	AuthorPage string
	Language   string
	Identifier string // urn:uuid:...
}

// LocalNote is one endnote parsed from a page's footnote block. Number is
// the note numeral translated to ASCII digits and is unique within the page
// (first occurrence wins).
type LocalNote struct {
	Number string
	Text   string
}

// GlobalNote is a book-wide endnote. IDs are assigned in final reading order,
// 1-based and gapless. SectionID points at the nearest preceding sub-heading
// anchor within the owning chapter when one exists.
type GlobalNote struct {
	ID        int
	ChapterID int
	Text      string
	SectionID string
}

// SubHeading is an in-chapter navigation target injected into h2/h3 elements.
type SubHeading struct {
	ID    string
	Title string
}

// Chapter is a fully processed book chapter: the body fragment has endnote
// blocks removed and in-text references linked to global note ids. Never
// mutated after creation.
type Chapter struct {
	ID    int
	Order int
	Title string
	Body  string
}

// ImageAsset is a binary payload packaged with the book.
type ImageAsset struct {
	Name     string
	Data     []byte
	MimeType string
}

// Book is everything the packaging layer needs to produce the final artifact.
type Book struct {
	Meta         BookMeta
	OutputFormat config.OutputFmt
	Chapters     []Chapter
	Notes        []GlobalNote
	SubTOC       map[int][]SubHeading
	Images       []ImageAsset
	Cover        *ImageAsset
}

// SectionTitle resolves a sub-heading title by chapter and anchor id.
func (b *Book) SectionTitle(chapterID int, sectionID string) string {
	for _, h := range b.SubTOC[chapterID] {
		if h.ID == sectionID {
			return h.Title
		}
	}
	return ""
}
