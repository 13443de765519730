package shamela

import (
	"strings"
	"testing"
)

func TestExtractEndnotes(t *testing.T) {
	fragment := `<p>المتن (١) هنا (٢) أيضا.</p>` +
		`<hr><p class="hamesh">(١) الهامش الأول<br>تتمة السطر<br>(٢) الهامش الثاني</p>`

	rest, notes := ExtractEndnotes(fragment)
	if strings.Contains(rest, "hamesh") || strings.Contains(rest, "الهامش") {
		t.Errorf("footnote block not removed: %q", rest)
	}
	if !strings.Contains(rest, "المتن") {
		t.Errorf("body text lost: %q", rest)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d: %v", len(notes), notes)
	}
	if notes[0].Number != "1" || notes[0].Text != "الهامش الأول تتمة السطر" {
		t.Errorf("note 1 wrong: %+v", notes[0])
	}
	if notes[1].Number != "2" || notes[1].Text != "الهامش الثاني" {
		t.Errorf("note 2 wrong: %+v", notes[1])
	}
}

func TestExtractEndnotesNumberForms(t *testing.T) {
	cases := []struct {
		name  string
		block string
		num   string
	}{
		{"ascii parens", "(3) note text", "3"},
		{"arabic parens", "(٥) note text", "5"},
		{"dot separator", "7. note text", "7"},
		{"dash separator", "٤ - note text", "4"},
		{"colon separator", "9: note text", "9"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, notes := ExtractEndnotes(`<p class="hamesh">` + c.block + `</p>`)
			if len(notes) != 1 {
				t.Fatalf("expected 1 note, got %v", notes)
			}
			if notes[0].Number != c.num {
				t.Errorf("number = %q, want %q", notes[0].Number, c.num)
			}
			if notes[0].Text != "note text" {
				t.Errorf("text = %q", notes[0].Text)
			}
		})
	}
}

func TestExtractEndnotesDuplicateFirstWins(t *testing.T) {
	_, notes := ExtractEndnotes(`<p class="hamesh">(1) first<br>(1) second</p>`)
	if len(notes) != 1 || notes[0].Text != "first" {
		t.Errorf("duplicate handling wrong: %v", notes)
	}
}

func TestExtractEndnotesSorted(t *testing.T) {
	_, notes := ExtractEndnotes(`<p class="hamesh">(2) second<br>(10) tenth<br>(1) first</p>`)
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %v", notes)
	}
	want := []string{"1", "2", "10"}
	for i, w := range want {
		if notes[i].Number != w {
			t.Errorf("notes[%d].Number = %q, want %q (numeric order)", i, notes[i].Number, w)
		}
	}
}

func TestExtractEndnotesMultipleBlocks(t *testing.T) {
	fragment := `<p>a (1)</p><p class="hamesh">(1) one</p><p>b (2)</p><p class="hamesh">(2) two</p>`
	rest, notes := ExtractEndnotes(fragment)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %v", notes)
	}
	if !strings.Contains(rest, "a (1)") || !strings.Contains(rest, "b (2)") {
		t.Errorf("body segments lost: %q", rest)
	}
}

func TestExtractEndnotesNone(t *testing.T) {
	in := `<p>clean body</p>`
	rest, notes := ExtractEndnotes(in)
	if rest != in || notes != nil {
		t.Errorf("unexpected change: %q %v", rest, notes)
	}
}

func TestExtractEndnotesSkipsEmpty(t *testing.T) {
	_, notes := ExtractEndnotes(`<p class="hamesh">(1)<br>(2) real</p>`)
	if len(notes) != 1 || notes[0].Number != "2" {
		t.Errorf("empty note not skipped: %v", notes)
	}
}
