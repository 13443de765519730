package shamela

import (
	"strings"
	"testing"
)

const indexPage = `<!DOCTYPE html><html><head><title>نيل الأوطار - المكتبة الشاملة</title></head><body>
<h1><a href="/book/123">نيل الأوطار</a></h1>
<h3>بطاقة الكتاب</h3>
<div class="card">
الكتاب: <span>نيل الأوطار شرح منتقى الأخبار</span><br>
المؤلف: محمد بن علي الشوكاني [ <a href="/author/55">الشوكاني</a> ]<br>
الناشر: دار الحديث<br>
الطبعة: الأولى<br>
عدد الصفحات: ٣٤٥٦<br>
صفحة المؤلف: [ <a href="/author/55">ابن حجر</a> ]
<div class="text-left">tools</div>
</div>
<div class="betaka-index">
<ul>
<li><a href="/book/123/1">مقدمة المؤلف</a></li>
<li><a href="/book/123/2">كتاب الطهارة</a></li>
<li><a href="/book/123/2/">أبواب المياه</a></li>
<li><a href="https://shamela.ws/book/123/30">كتاب الصلاة</a></li>
<li><a href="/book/999/5">كتاب آخر</a></li>
<li><a href="/book/123/2#p1">رابط داخلي</a></li>
<li><a href="/author/55">الشوكاني</a></li>
</ul>
</div>
</body></html>`

func TestExtractBookID(t *testing.T) {
	cases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://shamela.ws/book/123", "123", true},
		{"https://shamela.ws/book/123/5", "123", true},
		{"https://shamela.ws/author/55", "", false},
	}
	for _, c := range cases {
		got, err := ExtractBookID(c.url)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("ExtractBookID(%q) = %q, %v", c.url, got, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ExtractBookID(%q) expected error", c.url)
		}
	}
}

func TestParseTOC(t *testing.T) {
	entries, err := ParseTOC("https://shamela.ws/book/123", indexPage)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(entries), entries)
	}
	for i, e := range entries {
		if e.Order != i+1 {
			t.Errorf("entry %d order = %d, want dense 1-based", i, e.Order)
		}
	}
	if entries[0].ID != 1 || entries[0].Title != "مقدمة المؤلف" {
		t.Errorf("first entry wrong: %+v", entries[0])
	}
	if entries[1].ID != 2 || entries[1].Title != "كتاب الطهارة" {
		t.Errorf("second entry wrong: %+v", entries[1])
	}
	if len(entries[1].Aliases) != 1 || entries[1].Aliases[0] != "أبواب المياه" {
		t.Errorf("aliases wrong: %+v", entries[1])
	}
	if entries[2].ID != 30 {
		t.Errorf("absolute url entry wrong: %+v", entries[2])
	}
	if !strings.HasPrefix(entries[0].URL, "https://shamela.ws/") {
		t.Errorf("relative url not resolved: %q", entries[0].URL)
	}
	for _, e := range entries {
		if strings.Contains(e.URL, "/book/999/") {
			t.Errorf("foreign book page leaked: %+v", e)
		}
	}
}

func TestParseTOCRepeatedHref(t *testing.T) {
	// a repeated href carries no information, its text is not an alias
	index := `<a href="/book/123/5">العنوان</a><a href="/book/123/5">اقرأ</a>`
	entries, err := ParseTOC("https://shamela.ws/book/123", index)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", entries)
	}
	if len(entries[0].Aliases) != 0 {
		t.Errorf("repeated href must be skipped entirely, got aliases %v", entries[0].Aliases)
	}

	// distinct hrefs to the same page alias once, duplicate texts collapse
	index = `<a href="/book/123/5">العنوان</a>` +
		`<a href="/book/123/5/">بديل</a>` +
		`<a href="https://www.shamela.ws/book/123/5">بديل</a>` +
		`<a href="https://www.shamela.ws/book/123/5/">العنوان</a>`
	entries, err = ParseTOC("https://shamela.ws/book/123", index)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || len(entries[0].Aliases) != 1 || entries[0].Aliases[0] != "بديل" {
		t.Errorf("alias dedupe wrong: %+v", entries)
	}
}

func TestParseTOCEmpty(t *testing.T) {
	entries, err := ParseTOC("https://shamela.ws/book/123", `<html><body>nothing</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestParseBookMeta(t *testing.T) {
	meta := ParseBookMeta(indexPage)
	if meta.Title != "نيل الأوطار" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.BookTitle != "نيل الأوطار شرح منتقى الأخبار" {
		t.Errorf("book title = %q", meta.BookTitle)
	}
	if !strings.Contains(meta.Author, "الشوكاني") {
		t.Errorf("author = %q", meta.Author)
	}
	if meta.Publisher != "دار الحديث" {
		t.Errorf("publisher = %q", meta.Publisher)
	}
	if meta.Edition != "الأولى" {
		t.Errorf("edition = %q", meta.Edition)
	}
	if meta.Pages != "3456" && meta.Pages != "٣٤٥٦" {
		t.Errorf("pages = %q", meta.Pages)
	}
	if meta.Language != "ar" {
		t.Errorf("language = %q", meta.Language)
	}
	if !strings.HasPrefix(meta.Identifier, "urn:uuid:") {
		t.Errorf("identifier = %q", meta.Identifier)
	}
}

func TestParseBookMetaFallbackTitle(t *testing.T) {
	meta := ParseBookMeta(`<html><head><title>عنوان ما - المكتبة الشاملة</title></head><body></body></html>`)
	if meta.Title != "عنوان ما" {
		t.Errorf("title = %q", meta.Title)
	}
	meta = ParseBookMeta(`<html><body></body></html>`)
	if meta.Title == "" {
		t.Error("title should never be empty")
	}
}

func TestExtractPageTitle(t *testing.T) {
	cases := []struct {
		name string
		page string
		want string
	}{
		{
			"breadcrumb",
			`<div class="s-nav"><a href="/book/123">الكتاب</a><a class="active" href="#">كتاب الطهارة</a></div>`,
			"كتاب الطهارة",
		},
		{
			"page header",
			`<section class="page-header"><h1><a href="#">مقدمة</a></h1></section>`,
			"مقدمة",
		},
		{
			"title tag",
			`<html><head><title>باب المياه - المكتبة الشاملة</title></head></html>`,
			"باب المياه",
		},
		{"nothing", `<html><body></body></html>`, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractPageTitle(c.page); got != c.want {
				t.Errorf("ExtractPageTitle = %q, want %q", got, c.want)
			}
		})
	}
}

func TestNextPageID(t *testing.T) {
	page := `<a href="/book/123/5">&nbsp;&gt;&nbsp;</a>`
	id, ok := NextPageID(page, "123")
	if !ok || id != 5 {
		t.Errorf("NextPageID = %d, %v", id, ok)
	}
	if _, ok := NextPageID(`<a href="/book/123/5">next</a>`, "123"); ok {
		t.Error("plain link should not count as pagination arrow")
	}
	if _, ok := NextPageID(page, "999"); ok {
		t.Error("arrow into another book accepted")
	}
}

func TestCollectAnchors(t *testing.T) {
	src := `<a href="/x">one <b>two</b></a><a>no href</a><a href="/y">&nbsp;ثلاثة&nbsp;</a>`
	got := CollectAnchors(src)
	if len(got) != 3 {
		t.Fatalf("expected 3 anchors, got %v", got)
	}
	if got[0].Href != "/x" || got[0].Text != "one two" {
		t.Errorf("anchor 0 wrong: %+v", got[0])
	}
	if got[1].Href != "" {
		t.Errorf("anchor 1 wrong: %+v", got[1])
	}
	if got[2].Text != "ثلاثة" {
		t.Errorf("anchor 2 text not normalized: %+v", got[2])
	}
}
