package epub

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"sbc/config"
	"sbc/shamela"
)

// metaValues mirrors the variables available to metadata templates.
type metaValues struct {
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

func expandMetaTemplate(b *shamela.Book, name config.TemplateFieldName, field string) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := metaValues{
		Context:   string(name),
		Title:     b.Meta.Title,
		BookTitle: b.Meta.BookTitle,
		Author:    b.Meta.Author,
		Publisher: b.Meta.Publisher,
		Edition:   b.Meta.Edition,
		Pages:     b.Meta.Pages,
		Language:  b.Meta.Language,
		Date:      time.Now().Format("2006-01-02"),
		Format:    b.OutputFormat.String(),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
