package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLSource turns an HTML page into a single page of visible text.
type HTMLSource struct{}

func NewHTMLSource() *HTMLSource { return &HTMLSource{} }

func (s *HTMLSource) Open(_ context.Context, data []byte) (PageReader, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var sb strings.Builder
	collectHTMLText(doc, &sb)
	return StaticPages{collapseSpace(sb.String())}, nil
}

// collectHTMLText appends visible text, skipping scripts, styles and nodes
// hidden with the hidden attribute.
func collectHTMLText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return
		}
		for _, a := range n.Attr {
			if a.Key == "hidden" || (a.Key == "aria-hidden" && a.Val == "true") {
				return
			}
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectHTMLText(c, sb)
	}
}
