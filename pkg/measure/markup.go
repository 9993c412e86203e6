package measure

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripMarkup returns the text content of an inline markup fragment such as
// "<b>bold</b> text<br/>more". Line breaks become newlines; unknown tags
// are dropped with their text kept. Input that fails to parse is returned
// unchanged.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return s
	}
	var sb strings.Builder
	for _, n := range nodes {
		writeText(&sb, n)
	}
	return sb.String()
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			sb.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}
