// Package epub packages an assembled book into EPUB2 or EPUB3.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/shamela"
	"sbc/state"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	imagesDir       = "images"
)

// Generate creates the EPUB output file, epub2 or epub3 based on
// b.OutputFormat.
func Generate(ctx context.Context, b *shamela.Book, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	log.Info("Generating EPUB", zap.Stringer("format", b.OutputFormat), zap.String("output", outputPath))

	tmpName := outputPath + ".tmp"

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpName)

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := writeContainer(zw); err != nil {
		return fmt.Errorf("unable to write container: %w", err)
	}

	files := chapterFiles(b)

	for _, ch := range b.Chapters {
		doc, err := buildChapterDoc(b, &ch, log)
		if err != nil {
			return fmt.Errorf("unable to build chapter %d: %w", ch.ID, err)
		}
		if err := writeXMLToZip(zw, path.Join(oebpsDir, files[ch.ID]), doc); err != nil {
			return fmt.Errorf("unable to write chapter %d: %w", ch.ID, err)
		}
	}

	if len(b.Notes) > 0 {
		doc := buildEndnotesDoc(b, cfg, files)
		if err := writeXMLToZip(zw, path.Join(oebpsDir, shamela.NotesFileName), doc); err != nil {
			return fmt.Errorf("unable to write endnotes: %w", err)
		}
	}

	if b.Cover != nil {
		if err := writeDataToZip(zw, path.Join(oebpsDir, imagesDir, b.Cover.Name), b.Cover.Data); err != nil {
			return fmt.Errorf("unable to write cover image: %w", err)
		}
		if err := writeXMLToZip(zw, path.Join(oebpsDir, "cover.xhtml"), buildCoverDoc(b)); err != nil {
			return fmt.Errorf("unable to write cover page: %w", err)
		}
	}

	if err := writeImages(zw, b); err != nil {
		return err
	}

	if err := writeDataToZip(zw, path.Join(oebpsDir, "stylesheet.css"), normalizeCSS(env.DefaultStyle)); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}

	if err := writeOPF(zw, b, cfg, files, log); err != nil {
		return fmt.Errorf("unable to write OPF: %w", err)
	}

	switch b.OutputFormat {
	case config.OutputFmtEpub3:
		if err := writeNav(zw, b, cfg, files); err != nil {
			return fmt.Errorf("unable to write NAV: %w", err)
		}
	default:
		if err := writeNCX(zw, b, cfg, files); err != nil {
			return fmt.Errorf("unable to write NCX: %w", err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}

	if cfg.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

// chapterFiles assigns stable in-book file names, chapter order decides.
func chapterFiles(b *shamela.Book) map[int]string {
	files := make(map[int]string, len(b.Chapters))
	for _, ch := range b.Chapters {
		files[ch.ID] = fmt.Sprintf("ch%04d.xhtml", ch.Order)
	}
	return files
}

func writeMimetype(zw *zip.Writer) error {
	// first entry, stored, per OCF
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeContainer(zw *zip.Writer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return writeXMLToZip(zw, "META-INF/container.xml", doc)
}

func writeImages(zw *zip.Writer, b *shamela.Book) error {
	assets := make([]shamela.ImageAsset, len(b.Images))
	copy(assets, b.Images)
	sort.Slice(assets, func(i, j int) bool { return natural.Less(assets[i].Name, assets[j].Name) })

	for _, img := range assets {
		if err := writeDataToZip(zw, path.Join(oebpsDir, imagesDir, img.Name), img.Data); err != nil {
			return fmt.Errorf("unable to write image %s: %w", img.Name, err)
		}
	}
	return nil
}

func writeOPF(zw *zip.Writer, b *shamela.Book, cfg *config.DocumentConfig, files map[int]string, log *zap.Logger) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "BookId")
	switch b.OutputFormat {
	case config.OutputFmtEpub3:
		pkg.CreateAttr("version", "3.0")
	default:
		pkg.CreateAttr("version", "2.0")
	}

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	title := b.Meta.Title
	if cfg.Metainformation.TitleTemplate != "" {
		expanded, err := expandMetaTemplate(b, config.MetaTitleTemplateFieldName, cfg.Metainformation.TitleTemplate)
		if err != nil {
			log.Warn("Unable to prepare title for generated OPF", zap.Error(err))
		} else {
			title = expanded
		}
	}
	metadata.CreateElement("dc:title").SetText(title)

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", "BookId")
	dcIdentifier.SetText(b.Meta.Identifier)

	metadata.CreateElement("dc:language").SetText(b.Meta.Language)

	if b.Meta.Author != "" {
		author := b.Meta.Author
		if cfg.Metainformation.CreatorNameTemplate != "" {
			expanded, err := expandMetaTemplate(b, config.MetaCreatorNameTemplateFieldName, cfg.Metainformation.CreatorNameTemplate)
			if err != nil {
				log.Warn("Unable to prepare author name for generated OPF", zap.Error(err))
			} else {
				author = expanded
			}
		}
		dcCreator := metadata.CreateElement("dc:creator")
		dcCreator.SetText(author)
		if b.OutputFormat == config.OutputFmtEpub3 {
			dcCreator.CreateAttr("id", "creator0")
			roleMeta := metadata.CreateElement("meta")
			roleMeta.CreateAttr("refines", "#creator0")
			roleMeta.CreateAttr("property", "role")
			roleMeta.CreateAttr("scheme", "marc:relators")
			roleMeta.SetText("aut")
		} else {
			dcCreator.CreateAttr("opf:role", "aut")
		}
	}

	if b.Meta.Publisher != "" {
		metadata.CreateElement("dc:publisher").SetText(b.Meta.Publisher)
	}
	if b.Meta.Edition != "" {
		meta := metadata.CreateElement("meta")
		meta.CreateAttr("name", "sbc:edition")
		meta.CreateAttr("content", b.Meta.Edition)
	}

	if b.Cover != nil && b.OutputFormat != config.OutputFmtEpub3 {
		meta := metadata.CreateElement("meta")
		meta.CreateAttr("name", "cover")
		meta.CreateAttr("content", "book-cover-image")
	}
	if b.OutputFormat == config.OutputFmtEpub3 {
		modifiedMeta := metadata.CreateElement("meta")
		modifiedMeta.CreateAttr("property", "dcterms:modified")
		modifiedMeta.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	}

	manifest := pkg.CreateElement("manifest")

	switch b.OutputFormat {
	case config.OutputFmtEpub3:
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "nav")
		item.CreateAttr("href", "nav.xhtml")
		item.CreateAttr("media-type", "application/xhtml+xml")
		item.CreateAttr("properties", "nav")
	default:
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "ncx")
		item.CreateAttr("href", "toc.ncx")
		item.CreateAttr("media-type", "application/x-dtbncx+xml")
	}

	cssItem := manifest.CreateElement("item")
	cssItem.CreateAttr("id", "stylesheet")
	cssItem.CreateAttr("href", "stylesheet.css")
	cssItem.CreateAttr("media-type", "text/css")

	if b.Cover != nil {
		coverPageItem := manifest.CreateElement("item")
		coverPageItem.CreateAttr("id", "cover-page")
		coverPageItem.CreateAttr("href", "cover.xhtml")
		coverPageItem.CreateAttr("media-type", "application/xhtml+xml")

		coverImageItem := manifest.CreateElement("item")
		coverImageItem.CreateAttr("id", "book-cover-image")
		coverImageItem.CreateAttr("href", imagesDir+"/"+b.Cover.Name)
		coverImageItem.CreateAttr("media-type", b.Cover.MimeType)
		if b.OutputFormat == config.OutputFmtEpub3 {
			coverImageItem.CreateAttr("properties", "cover-image")
		}
	}

	for _, ch := range b.Chapters {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "ch-"+strconv.Itoa(ch.Order))
		item.CreateAttr("href", files[ch.ID])
		item.CreateAttr("media-type", "application/xhtml+xml")
	}
	if len(b.Notes) > 0 {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "endnotes")
		item.CreateAttr("href", shamela.NotesFileName)
		item.CreateAttr("media-type", "application/xhtml+xml")
	}

	assets := make([]shamela.ImageAsset, len(b.Images))
	copy(assets, b.Images)
	sort.Slice(assets, func(i, j int) bool { return natural.Less(assets[i].Name, assets[j].Name) })
	for i, img := range assets {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "img-"+strconv.Itoa(i+1))
		item.CreateAttr("href", imagesDir+"/"+img.Name)
		item.CreateAttr("media-type", img.MimeType)
	}

	spine := pkg.CreateElement("spine")
	if b.OutputFormat != config.OutputFmtEpub3 {
		spine.CreateAttr("toc", "ncx")
	}
	// right-to-left book, pages turn the other way
	spine.CreateAttr("page-progression-direction", "rtl")

	if b.Cover != nil {
		coverRef := spine.CreateElement("itemref")
		coverRef.CreateAttr("idref", "cover-page")
		coverRef.CreateAttr("linear", "no")
	}
	for _, ch := range b.Chapters {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", "ch-"+strconv.Itoa(ch.Order))
	}
	if len(b.Notes) > 0 {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", "endnotes")
	}

	if b.OutputFormat != config.OutputFmtEpub3 {
		guide := pkg.CreateElement("guide")
		if b.Cover != nil {
			coverRef := guide.CreateElement("reference")
			coverRef.CreateAttr("type", "cover")
			coverRef.CreateAttr("title", "Cover")
			coverRef.CreateAttr("href", "cover.xhtml")
		}
		if len(b.Chapters) > 0 {
			startRef := guide.CreateElement("reference")
			startRef.CreateAttr("type", "text")
			startRef.CreateAttr("title", "Start")
			startRef.CreateAttr("href", files[b.Chapters[0].ID])
		}
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "content.opf"), doc)
}

func writeNCX(zw *zip.Writer, b *shamela.Book, cfg *config.DocumentConfig, files map[int]string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	addNCXMeta(head, "dtb:uid", b.Meta.Identifier)
	addNCXMeta(head, "dtb:depth", "2")
	addNCXMeta(head, "dtb:totalPageCount", "0")
	addNCXMeta(head, "dtb:maxPageNumber", "0")

	docTitle := ncx.CreateElement("docTitle")
	docTitle.CreateElement("text").SetText(b.Meta.Title)

	navMap := ncx.CreateElement("navMap")
	playOrder := 0
	next := func() string { playOrder++; return strconv.Itoa(playOrder) }

	for _, ch := range b.Chapters {
		np := navMap.CreateElement("navPoint")
		np.CreateAttr("id", "nav-ch-"+strconv.Itoa(ch.Order))
		np.CreateAttr("playOrder", next())
		np.CreateElement("navLabel").CreateElement("text").SetText(ch.Title)
		np.CreateElement("content").CreateAttr("src", files[ch.ID])

		for _, sub := range b.SubTOC[ch.ID] {
			sp := np.CreateElement("navPoint")
			sp.CreateAttr("id", "nav-"+sub.ID)
			sp.CreateAttr("playOrder", next())
			sp.CreateElement("navLabel").CreateElement("text").SetText(sub.Title)
			sp.CreateElement("content").CreateAttr("src", files[ch.ID]+"#"+sub.ID)
		}
	}
	if len(b.Notes) > 0 {
		np := navMap.CreateElement("navPoint")
		np.CreateAttr("id", "nav-endnotes")
		np.CreateAttr("playOrder", next())
		np.CreateElement("navLabel").CreateElement("text").SetText(cfg.Endnotes.Title)
		np.CreateElement("content").CreateAttr("src", shamela.NotesFileName)
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "toc.ncx"), doc)
}

func addNCXMeta(head *etree.Element, name, content string) {
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", name)
	meta.CreateAttr("content", content)
}

func writeNav(zw *zip.Writer, b *shamela.Book, cfg *config.DocumentConfig, files map[int]string) error {
	doc, body := newXHTMLDocument(b.Meta.Language, "فهرس الكتاب")

	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateAttr("role", "doc-toc")
	nav.CreateElement("h1").SetText("فهرس الكتاب")

	ol := nav.CreateElement("ol")
	for _, ch := range b.Chapters {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", files[ch.ID])
		a.SetText(ch.Title)

		if subs := b.SubTOC[ch.ID]; len(subs) > 0 {
			sol := li.CreateElement("ol")
			for _, sub := range subs {
				sli := sol.CreateElement("li")
				sa := sli.CreateElement("a")
				sa.CreateAttr("href", files[ch.ID]+"#"+sub.ID)
				sa.SetText(sub.Title)
			}
		}
	}
	if len(b.Notes) > 0 {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", shamela.NotesFileName)
		a.SetText(cfg.Endnotes.Title)
	}

	landmarks := body.CreateElement("nav")
	landmarks.CreateAttr("epub:type", "landmarks")
	landmarks.CreateAttr("id", "landmarks")
	landmarks.CreateAttr("hidden", "")

	lol := landmarks.CreateElement("ol")
	if b.Cover != nil {
		li := lol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "cover")
		a.CreateAttr("href", "cover.xhtml")
		a.SetText("Cover")
	}
	if len(b.Chapters) > 0 {
		li := lol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "bodymatter")
		a.CreateAttr("href", files[b.Chapters[0].ID])
		a.SetText("Start")
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "nav.xhtml"), doc)
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// copyZipWithoutDataDescriptors rewrites the archive so entries carry sizes
// and checksums in their local headers. Some old readers choke on streamed
// entries with data descriptors.
func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag
		file.Flags &= ^fixzip.FlagDataDescriptor

		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}
