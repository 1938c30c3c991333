package mdtext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extract derives the plain-text representation of a markdown document body.
// Block boundaries become blank lines so the chunker still sees paragraph
// structure; inline markup, links and code fences are stripped to their text.
func Extract(markdown string) string {
	source := []byte(markdown)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		var part string
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(source))
			}
			part = strings.TrimSpace(sb.String())
		default:
			part = blockText(node, source)
		}
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n")
}

func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
