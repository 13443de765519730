package epub

import (
	"bytes"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// normalizeCSS strips comments and squeezes blank lines out of the
// stylesheet before packaging. Anything the lexer cannot make sense of is
// passed through untouched.
func normalizeCSS(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))

	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			// EOF or genuinely broken input, keep what we have
			if out.Len() == 0 {
				return data
			}
			return squeezeBlankLines(out.Bytes())
		case css.CommentToken:
		default:
			out.Write(text)
		}
	}
}

func squeezeBlankLines(data []byte) []byte {
	for bytes.Contains(data, []byte("\n\n\n")) {
		data = bytes.ReplaceAll(data, []byte("\n\n\n"), []byte("\n\n"))
	}
	return bytes.TrimLeft(data, "\n")
}
