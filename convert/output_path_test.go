package convert

import (
	"path/filepath"
	"strings"
	"testing"

	"sbc/config"
	"sbc/shamela"
)

func TestBuildDefaultFileName(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		name string
		meta shamela.BookMeta
		want string
	}{
		{
			name: "prefix stripped, publisher appended",
			meta: shamela.BookMeta{Title: "كتاب المجرب", Publisher: "دار النشر"},
			want: "المجرب - دار النشر.epub",
		},
		{
			name: "no publisher",
			meta: shamela.BookMeta{Title: "كتاب المجرب"},
			want: "المجرب.epub",
		},
		{
			name: "title that is only the prefix survives",
			meta: shamela.BookMeta{Title: "كتاب"},
			want: "كتاب.epub",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := buildDefaultFileName(&tc.meta, config.OutputFmtEpub2, env)
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildDefaultFileNameTruncation(t *testing.T) {
	env := testEnv(t)
	meta := shamela.BookMeta{Title: strings.Repeat("ع", 300)}

	got := buildDefaultFileName(&meta, config.OutputFmtEpub2, env)
	if n := len([]rune(strings.TrimSuffix(got, ".epub"))); n > maxFileNameRunes {
		t.Errorf("file name not truncated, %d runes", n)
	}
}

func TestBuildOutputPathTemplate(t *testing.T) {
	env := testEnv(t)
	env.Cfg.Document.OutputNameTemplate = "{{.Author}}/{{.Title}}"
	meta := shamela.BookMeta{Title: "المجرب", Author: "مؤلف"}

	got := buildOutputPath(&meta, "/out", config.OutputFmtEpub2, env)
	want := filepath.Join("/out", "مؤلف", "المجرب.epub")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildOutputPathBadTemplateFallsBack(t *testing.T) {
	env := testEnv(t)
	env.Cfg.Document.OutputNameTemplate = "{{.Title"
	meta := shamela.BookMeta{Title: "كتاب المجرب", Publisher: "دار النشر"}

	got := buildOutputPath(&meta, "/out", config.OutputFmtEpub2, env)
	want := filepath.Join("/out", "المجرب - دار النشر.epub")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveURL(t *testing.T) {
	const base = "https://shamela.ws"

	tests := []struct {
		src  string
		want string
	}{
		{"/images/pic.png", base + "/images/pic.png"},
		{"//cdn.example.org/pic.png", "https://cdn.example.org/pic.png"},
		{"https://other.org/pic.png", "https://other.org/pic.png"},
		{"data:image/png;base64,AAAA", ""},
		{"relative.png", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := resolveURL(base, tc.src); got != tc.want {
			t.Errorf("resolveURL(%q) = %q, want %q", tc.src, got, tc.want)
		}
	}

	if got := baseURL("https://shamela.ws/book/7"); got != base {
		t.Errorf("baseURL = %q", got)
	}
}
