package convert

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"sbc/config"
	"sbc/shamela"
)

// Values holds variables we make available for template expansion.
type Values struct {
	Context   string
	Title     string
	BookTitle string
	Author    string
	Publisher string
	Edition   string
	Pages     string
	Language  string
	Date      string
	Format    string
}

func expandTemplate(meta *shamela.BookMeta, name config.TemplateFieldName, field string, format config.OutputFmt) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:   string(name),
		Title:     meta.Title,
		BookTitle: meta.BookTitle,
		Author:    meta.Author,
		Publisher: meta.Publisher,
		Edition:   meta.Edition,
		Pages:     meta.Pages,
		Language:  meta.Language,
		Date:      time.Now().Format("2006-01-02"),
		Format:    format.String(),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
