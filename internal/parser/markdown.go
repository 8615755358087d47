package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// ExtractLinks returns the destinations of every Markdown link in src, in
// document order. Reference-style links are resolved by goldmark and show
// up as ordinary links. Code spans and fenced blocks are not scanned.
func ExtractLinks(src []byte) []string {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			if dest := strings.TrimSpace(string(node.Destination)); dest != "" {
				links = append(links, dest)
			}
		case *ast.AutoLink:
			// Autolinks are always absolute URLs; nothing to resolve.
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return links
}

// FirstHeading returns the text of the first heading in src, or "".
func FirstHeading(src []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			return strings.TrimSpace(extractText(h, src))
		}
	}
	return ""
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return buf.String()
}
