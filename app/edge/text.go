package edge

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Iframe: true, atom.Head: true,
}

// blocks end a line.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Dt: true, atom.Dd: true,
}

// PageText reduces an HTML document to readable text: one line per block,
// whitespace collapsed, scripts and styles dropped. The <title> is kept as
// the first line.
func PageText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		lines   []string
		line    strings.Builder
		title   string
		depth   int // inside skipped elements
		inTitle bool
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			if title != "" && (len(lines) == 0 || lines[0] != title) {
				lines = append([]string{title}, lines...)
			}
			return strings.Join(lines, "\n")

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = true
			case skipped[tok.DataAtom]:
				if tok.Type == html.StartTagToken {
					depth++
				}
			case blocks[tok.DataAtom]:
				flush()
			}

		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = false
			case skipped[tok.DataAtom]:
				if depth > 0 {
					depth--
				}
			case blocks[tok.DataAtom]:
				flush()
			}

		case html.TextToken:
			text := string(z.Text())
			switch {
			case inTitle:
				title = strings.Join(strings.Fields(title+" "+text), " ")
			case depth == 0:
				line.WriteString(text)
				line.WriteByte(' ')
			}
		}
	}
}
