package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text returns the visible text of n with whitespace collapsed. When nothing
// visible is rendered it falls back to the full text content, then the value
// attribute, then the title attribute.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}

	var b strings.Builder
	renderedText(n, &b)
	if s := Collapse(b.String()); s != "" {
		return s
	}

	b.Reset()
	textContent(n, &b)
	if s := Collapse(b.String()); s != "" {
		return s
	}

	for _, name := range []string{"value", "title"} {
		if v, ok := attr(n, name); ok {
			if s := Collapse(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// SelectionText returns Text of the first node in sel
func SelectionText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return Text(sel.Get(0))
}

// Collapse trims s and folds runs of whitespace into single spaces
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func renderedText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if hidden(n) {
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderedText(c, b)
	}
}

func textContent(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textContent(c, b)
	}
}

func hidden(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Head:
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if v, ok := attr(n, "aria-hidden"); ok && strings.EqualFold(v, "true") {
		return true
	}
	if v, ok := attr(n, "style"); ok {
		style := strings.ReplaceAll(strings.ToLower(v), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
