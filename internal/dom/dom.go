// Package dom queries page snapshots with CSS selectors and XPath
// expressions and turns matched nodes into field values.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Kind is the query language of a selector
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

func (k Kind) String() string {
	if k == KindXPath {
		return "xpath"
	}
	return "css"
}

// Query is a single selector in either language
type Query struct {
	Expr string
	Kind Kind
}

// CSS builds a CSS selector query
func CSS(expr string) Query { return Query{Expr: expr, Kind: KindCSS} }

// XPath builds an XPath query
func XPath(expr string) Query { return Query{Expr: expr, Kind: KindXPath} }

// XPathf formats an XPath expression
func XPathf(format string, args ...any) Query {
	return XPath(fmt.Sprintf(format, args...))
}

func (q Query) String() string {
	return q.Kind.String() + ":" + q.Expr
}

// Strategy locates the node holding a field value
type Strategy interface {
	Find(doc *Document) (*html.Node, bool)
}

// StrategyFunc adapts a function to Strategy
type StrategyFunc func(doc *Document) (*html.Node, bool)

func (f StrategyFunc) Find(doc *Document) (*html.Node, bool) { return f(doc) }

// Find returns the first node matching q. Malformed expressions match
// nothing.
func (q Query) Find(doc *Document) (*html.Node, bool) {
	nodes := q.FindAll(doc)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

// FindAll returns every node matching q in document order
func (q Query) FindAll(doc *Document) []*html.Node {
	if doc == nil {
		return nil
	}
	return q.FindIn(doc.root)
}

// FindIn evaluates q relative to n
func (q Query) FindIn(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	switch q.Kind {
	case KindXPath:
		nodes, err := htmlquery.QueryAll(n, q.Expr)
		if err != nil {
			return nil
		}
		return nodes
	default:
		// goquery treats a selector that fails to compile as matching nothing
		return goquery.NewDocumentFromNode(n).Find(q.Expr).Nodes
	}
}

// Document is a parsed page snapshot
type Document struct {
	root *html.Node
	doc  *goquery.Document
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root, doc: goquery.NewDocumentFromNode(root)}, nil
}

// ParseString parses an HTML string
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Find runs a CSS selector over the whole document
func (d *Document) Find(css string) *goquery.Selection {
	return d.doc.Find(css)
}
