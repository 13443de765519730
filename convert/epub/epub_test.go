package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"sbc/config"
	"sbc/shamela"
	"sbc/state"
)

func testBook(format config.OutputFmt) *shamela.Book {
	return &shamela.Book{
		Meta: shamela.BookMeta{
			Title:      "كتاب التجارب",
			Author:     "مؤلف مجرب",
			Publisher:  "دار النشر",
			Language:   "ar",
			Identifier: "urn:uuid:00000000-0000-0000-0000-000000000042",
		},
		OutputFormat: format,
		Chapters: []shamela.Chapter{
			{ID: 11, Order: 1, Title: "المقدمة", Body: `<p>نص <sup><a id="ref-1" href="endnotes.xhtml#note-1">1</a></sup></p>`},
			{ID: 7, Order: 2, Title: "الباب الأول", Body: `<h2 id="sec-7-1">فصل</h2><p>نص آخر</p>`},
		},
		Notes: []shamela.GlobalNote{
			{ID: 1, ChapterID: 11, Text: "هامش أول"},
		},
		SubTOC: map[int][]shamela.SubHeading{
			7: {{ID: "sec-7-1", Title: "فصل"}},
		},
	}
}

func testDocCfg(t *testing.T) *config.DocumentConfig {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	return &cfg.Document
}

func generateTestEPUB(t *testing.T, b *shamela.Book, cfg *config.DocumentConfig) string {
	t.Helper()

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.DefaultStyle = []byte("/* removed */\nbody { direction: rtl; }\n")

	out := filepath.Join(t.TempDir(), "book.epub")
	if err := Generate(ctx, b, out, cfg, zaptest.NewLogger(t)); err != nil {
		t.Fatal(err)
	}
	return out
}

func readZipFile(t *testing.T, zr *zip.ReadCloser, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		r, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatalf("%s not found in archive", name)
	return ""
}

func TestGenerateEpub2(t *testing.T) {
	cfg := testDocCfg(t)
	out := generateTestEPUB(t, testBook(config.OutputFmtEpub2), cfg)

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	// OCF: mimetype first and stored
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatalf("mimetype must be the first entry, got %v", zr.File[0].Name)
	}
	if zr.File[0].Method != zip.Store {
		t.Error("mimetype must not be compressed")
	}
	if got := readZipFile(t, zr, "mimetype"); got != "application/epub+zip" {
		t.Errorf("mimetype content = %q", got)
	}

	container := readZipFile(t, zr, "META-INF/container.xml")
	if !strings.Contains(container, `full-path="OEBPS/content.opf"`) {
		t.Errorf("container does not point at package document:\n%s", container)
	}

	opf := readZipFile(t, zr, "OEBPS/content.opf")
	for _, want := range []string{
		`version="2.0"`,
		`page-progression-direction="rtl"`,
		`opf:role="aut"`,
		`<dc:identifier id="BookId">urn:uuid:00000000-0000-0000-0000-000000000042</dc:identifier>`,
		`href="toc.ncx"`,
		`href="ch0001.xhtml"`,
		`href="endnotes.xhtml"`,
		`<guide>`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("OPF missing %q:\n%s", want, opf)
		}
	}
	if strings.Contains(opf, "dcterms:modified") {
		t.Error("epub2 package must not carry epub3 metadata")
	}

	ncx := readZipFile(t, zr, "OEBPS/toc.ncx")
	for _, want := range []string{
		`content="urn:uuid:00000000-0000-0000-0000-000000000042"`,
		`ch0002.xhtml#sec-7-1`,
		`playOrder="3"`,
		`src="endnotes.xhtml"`,
	} {
		if !strings.Contains(ncx, want) {
			t.Errorf("NCX missing %q:\n%s", want, ncx)
		}
	}

	// chapter file names follow reading order, not site ids
	first := readZipFile(t, zr, "OEBPS/ch0001.xhtml")
	if !strings.Contains(first, "المقدمة") || !strings.Contains(first, `href="endnotes.xhtml#note-1"`) {
		t.Errorf("chapter content lost:\n%s", first)
	}
	if !strings.Contains(first, `dir="rtl"`) {
		t.Error("chapter document must be right-to-left")
	}

	notes := readZipFile(t, zr, "OEBPS/endnotes.xhtml")
	if !strings.Contains(notes, `id="note-1"`) || !strings.Contains(notes, `href="ch0001.xhtml#ref-1"`) {
		t.Errorf("endnotes backlink broken:\n%s", notes)
	}

	css := readZipFile(t, zr, "OEBPS/stylesheet.css")
	if strings.Contains(css, "removed") {
		t.Error("stylesheet comments not stripped")
	}
	if !strings.Contains(css, "direction: rtl") {
		t.Errorf("stylesheet rules lost:\n%s", css)
	}
}

func TestGenerateEpub3(t *testing.T) {
	cfg := testDocCfg(t)
	out := generateTestEPUB(t, testBook(config.OutputFmtEpub3), cfg)

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	opf := readZipFile(t, zr, "OEBPS/content.opf")
	for _, want := range []string{
		`version="3.0"`,
		`dcterms:modified`,
		`properties="nav"`,
		`scheme="marc:relators"`,
		`page-progression-direction="rtl"`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("OPF missing %q:\n%s", want, opf)
		}
	}
	if strings.Contains(opf, `opf:role="aut"`) {
		t.Error("epub3 package must use refines, not opf:role")
	}
	if strings.Contains(opf, "toc.ncx") {
		t.Error("epub3 package must not reference NCX")
	}

	nav := readZipFile(t, zr, "OEBPS/nav.xhtml")
	for _, want := range []string{
		`epub:type="toc"`,
		`epub:type="landmarks"`,
		`href="ch0002.xhtml#sec-7-1"`,
	} {
		if !strings.Contains(nav, want) {
			t.Errorf("nav missing %q:\n%s", want, nav)
		}
	}

	notes := readZipFile(t, zr, "OEBPS/endnotes.xhtml")
	if !strings.Contains(notes, `epub:type="backmatter endnotes"`) || !strings.Contains(notes, `epub:type="backlink"`) {
		t.Errorf("endnotes missing epub3 semantics:\n%s", notes)
	}
}

func TestGenerateCoverAndImages(t *testing.T) {
	cfg := testDocCfg(t)
	b := testBook(config.OutputFmtEpub2)
	b.Cover = &shamela.ImageAsset{Name: "cover.jpg", Data: []byte("jpegdata"), MimeType: "image/jpeg"}
	b.Images = []shamela.ImageAsset{
		{Name: "img0010.png", Data: []byte("b"), MimeType: "image/png"},
		{Name: "img0002.png", Data: []byte("a"), MimeType: "image/png"},
	}

	out := generateTestEPUB(t, b, cfg)
	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	opf := readZipFile(t, zr, "OEBPS/content.opf")
	for _, want := range []string{
		`<meta name="cover" content="book-cover-image"/>`,
		`href="images/cover.jpg"`,
		`idref="cover-page" linear="no"`,
		`type="cover"`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("OPF missing %q:\n%s", want, opf)
		}
	}
	// manifest ids follow natural image order
	if strings.Index(opf, "img0002.png") > strings.Index(opf, "img0010.png") {
		t.Error("images not in natural order in manifest")
	}

	cover := readZipFile(t, zr, "OEBPS/cover.xhtml")
	if !strings.Contains(cover, `src="images/cover.jpg"`) {
		t.Errorf("cover page broken:\n%s", cover)
	}
	if got := readZipFile(t, zr, "OEBPS/images/cover.jpg"); got != "jpegdata" {
		t.Error("cover image data corrupted")
	}
}

func TestGenerateFixZip(t *testing.T) {
	cfg := testDocCfg(t)
	cfg.FixZip = true

	out := generateTestEPUB(t, testBook(config.OutputFmtEpub2), cfg)
	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	const dataDescriptorFlag = 0x8
	for _, f := range zr.File {
		if f.Flags&dataDescriptorFlag != 0 {
			t.Errorf("entry %s still carries data descriptor flag", f.Name)
		}
	}
	if zr.File[0].Name != "mimetype" || zr.File[0].Method != zip.Store {
		t.Error("rewrite must preserve entry order and methods")
	}
}

func TestExpandMetaTemplate(t *testing.T) {
	b := testBook(config.OutputFmtEpub2)

	got, err := expandMetaTemplate(b, config.MetaTitleTemplateFieldName, `{{.Title}} ({{.Author}})`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "كتاب التجارب (مؤلف مجرب)" {
		t.Errorf("expanded = %q", got)
	}

	if _, err := expandMetaTemplate(b, config.MetaTitleTemplateFieldName, `{{.Title`); err == nil {
		t.Error("expected parse error")
	}
}

func TestNormalizeCSS(t *testing.T) {
	in := []byte("/* header */\nbody { color: red; }\n\n\n\n/* trailing */\np { margin: 0; }\n")
	out := normalizeCSS(in)

	if bytes.Contains(out, []byte("header")) || bytes.Contains(out, []byte("trailing")) {
		t.Errorf("comments survived: %q", out)
	}
	if !bytes.Contains(out, []byte("body { color: red; }")) || !bytes.Contains(out, []byte("p { margin: 0; }")) {
		t.Errorf("rules lost: %q", out)
	}
	if bytes.Contains(out, []byte("\n\n\n")) {
		t.Errorf("blank lines not squeezed: %q", out)
	}
}
