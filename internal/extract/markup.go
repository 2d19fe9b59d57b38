package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
	atom.Title: true,
}

// htmlText returns the visible text of an HTML document, one block per line.
func htmlText(data []byte) (string, error) {
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return "", eris.Wrap(err, "extract: parse html")
	}

	var buf bytes.Buffer
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			buf.WriteByte('\n')
		}
	}
	walk(doc)

	return collapseLines(buf.String()), nil
}

// collapseLines squeezes runs of whitespace inside each line and drops
// blank lines.
func collapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var (
	mdFence    = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading  = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	mdQuote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|\*|~~)([^*_~\n]+)(\*\*|__|\*|~~)`)
	mdCode     = regexp.MustCompile("`([^`]+)`")
	mdRule     = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	mdHTMLTag  = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// markdownText strips Markdown syntax, keeping the text it decorates.
func markdownText(data []byte) (string, error) {
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}
	text = mdFence.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdQuote.ReplaceAllString(text, "")
	text = mdRule.ReplaceAllString(text, "")
	text = mdEmphasis.ReplaceAllString(text, "$2")
	text = mdCode.ReplaceAllString(text, "$1")
	text = mdHTMLTag.ReplaceAllString(text, "")
	return strings.TrimSpace(collapseBlankLines(text)), nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
