package shamela

import (
	"strings"
	"testing"
)

func TestAddHeadingAnchors(t *testing.T) {
	fragment := `<h2 class="title">الباب الأول</h2><p>نص</p><h3>فصل</h3><p>نص آخر</p><h2> </h2>`
	out, subs := AddHeadingAnchors(fragment, 7)

	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-headings, got %v", subs)
	}
	if subs[0].ID != "sec-7-1" || subs[0].Title != "الباب الأول" {
		t.Errorf("first heading wrong: %+v", subs[0])
	}
	if subs[1].ID != "sec-7-2" || subs[1].Title != "فصل" {
		t.Errorf("second heading wrong: %+v", subs[1])
	}
	if !strings.Contains(out, `<h2 id="sec-7-1">`) || !strings.Contains(out, `<h3 id="sec-7-2">`) {
		t.Errorf("anchors missing: %q", out)
	}
	if strings.Contains(out, `class="title"`) {
		t.Errorf("original heading attributes kept: %q", out)
	}
	if !strings.Contains(out, "<h2> </h2>") {
		t.Errorf("empty heading should be untouched: %q", out)
	}
}

func TestAddHeadingAnchorsNone(t *testing.T) {
	in := `<p>no headings here</p>`
	out, subs := AddHeadingAnchors(in, 1)
	if out != in || subs != nil {
		t.Errorf("unexpected change: %q %v", out, subs)
	}
}

func TestNearestSections(t *testing.T) {
	fragment := `<p>before <sup><a id="ref-1" href="endnotes.xhtml#note-1">1</a></sup></p>` +
		`<h2 id="sec-3-1">أول</h2><p>x <sup><a id="ref-2" href="endnotes.xhtml#note-2">2</a></sup></p>` +
		`<h3 id="sec-3-2">ثان</h3><p>y <sup><a id="ref-3" href="endnotes.xhtml#note-3">3</a></sup></p>`

	got := NearestSections(fragment)
	if _, ok := got[1]; ok {
		t.Errorf("reference before first heading should have no section: %v", got)
	}
	if got[2] != "sec-3-1" {
		t.Errorf("ref 2 section = %q, want sec-3-1", got[2])
	}
	if got[3] != "sec-3-2" {
		t.Errorf("ref 3 section = %q, want sec-3-2", got[3])
	}
}

func TestNearestSectionsNoHeadings(t *testing.T) {
	if got := NearestSections(`<p><sup><a id="ref-1" href="#n">1</a></sup></p>`); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
