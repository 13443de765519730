package epub

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/shamela"
)

// newXHTMLDocument creates the document skeleton shared by every in-book
// page: right-to-left html with the book stylesheet linked.
func newXHTMLDocument(lang, title string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	html.CreateAttr("xml:lang", lang)
	html.CreateAttr("dir", "rtl")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	head.CreateElement("title").SetText(title)

	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", "stylesheet.css")

	return doc, html.CreateElement("body")
}

func buildChapterDoc(b *shamela.Book, ch *shamela.Chapter, log *zap.Logger) (*etree.Document, error) {
	doc, body := newXHTMLDocument(b.Meta.Language, ch.Title)

	div := body.CreateElement("div")
	div.CreateAttr("class", "chapter")
	div.CreateAttr("id", "ch-"+strconv.Itoa(ch.ID))

	div.CreateElement("h1").SetText(ch.Title)

	appendFragment(div, ch.Body, log)
	return doc, nil
}

// appendFragment parses a restricted markup fragment and reparents its
// elements under parent. The extractor guarantees well-formed output so a
// parse failure means a bug upstream, the text is preserved as a plain
// paragraph and the problem is logged.
func appendFragment(parent *etree.Element, fragment string, log *zap.Logger) {
	wrapper := etree.NewDocument()
	if err := wrapper.ReadFromString("<wrapper>" + fragment + "</wrapper>"); err != nil {
		log.Warn("Chapter fragment is not well-formed, emitting as plain text", zap.Error(err))
		parent.CreateElement("p").SetText(fragment)
		return
	}
	root := wrapper.Root()
	children := append([]etree.Token{}, root.Child...)
	for _, child := range children {
		parent.AddChild(child)
	}
}

// buildEndnotesDoc renders the book-wide endnote list. Every note links back
// to its reference and, when known, to the owning section.
func buildEndnotesDoc(b *shamela.Book, cfg *config.DocumentConfig, files map[int]string) *etree.Document {
	doc, body := newXHTMLDocument(b.Meta.Language, cfg.Endnotes.Title)

	var container *etree.Element
	if b.OutputFormat == config.OutputFmtEpub3 {
		container = body.CreateElement("section")
		container.CreateAttr("epub:type", "backmatter endnotes")
	} else {
		container = body.CreateElement("div")
		container.CreateAttr("class", "endnotes-body")
	}

	container.CreateElement("h1").SetText(cfg.Endnotes.Title)

	ol := container.CreateElement("ol")
	ol.CreateAttr("class", "endnotes")
	for _, note := range b.Notes {
		li := ol.CreateElement("li")
		li.CreateAttr("id", fmt.Sprintf("note-%d", note.ID))
		li.SetText(note.Text + " ")

		back := li.CreateElement("a")
		back.CreateAttr("class", "backlink")
		back.CreateAttr("href", fmt.Sprintf("%s#ref-%d", files[note.ChapterID], note.ID))
		if b.OutputFormat == config.OutputFmtEpub3 {
			back.CreateAttr("epub:type", "backlink")
		}
		back.SetText(cfg.Endnotes.BacklinkText)

		if note.SectionID != "" {
			if title := b.SectionTitle(note.ChapterID, note.SectionID); title != "" {
				sec := li.CreateElement("a")
				sec.CreateAttr("class", "seclink")
				sec.CreateAttr("href", files[note.ChapterID]+"#"+note.SectionID)
				sec.SetText("(" + title + ")")
			}
		}
	}
	return doc
}

// buildCoverDoc renders the cover page, the image scales with the viewport
// keeping its aspect ratio.
func buildCoverDoc(b *shamela.Book) *etree.Document {
	doc, body := newXHTMLDocument(b.Meta.Language, b.Meta.Title)

	div := body.CreateElement("div")
	div.CreateAttr("class", "cover")

	img := div.CreateElement("img")
	img.CreateAttr("src", imagesDir+"/"+b.Cover.Name)
	img.CreateAttr("alt", b.Meta.Title)

	return doc
}
