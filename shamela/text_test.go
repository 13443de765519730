package shamela

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"entities", "a&nbsp;&amp;&nbsp;b", "a & b"},
		{"whitespace run", "  a \t\n b  ", "a b"},
		{"bidi marks", "\u200fقال\u200e \u202bالشيخ\u202c", "قال الشيخ"},
		{"tatweel", "قـــال", "قال"},
		{"nbsp collapse", "a  b", "a b"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NormalizeText(c.in)
			if got != c.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
			}
			if again := NormalizeText(got); again != got {
				t.Errorf("not stable: NormalizeText(%q) = %q", got, again)
			}
		})
	}
}

func TestToASCIIDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"١٢٣", "123"},
		{"۴۵", "45"},
		{"(٧)", "(7)"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, c := range cases {
		if got := ToASCIIDigits(c.in); got != c.want {
			t.Errorf("ToASCIIDigits(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
