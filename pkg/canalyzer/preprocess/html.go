package preprocess

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLText replaces markup in the value text with its visible text. Script and
// style contents are dropped; block boundaries become spaces.
type HTMLText struct{}

func (HTMLText) Name() string { return "html_text" }

func (HTMLText) Process(v Value) (Value, error) {
	doc, err := html.Parse(strings.NewReader(v.Text))
	if err != nil {
		return Value{}, err
	}
	var b strings.Builder
	extractText(doc, &b)
	return Value{Text: strings.Join(strings.Fields(b.String()), " ")}, nil
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
}
