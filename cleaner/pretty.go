package cleaner

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const indentUnit = "  "

// Pretty re-indents an HTML document: one element per line, text trimmed,
// contents of pre, textarea, script and style kept as they are.
func Pretty(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf bytes.Buffer
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if err := writeNode(&buf, c, 0); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func writeNode(buf *bytes.Buffer, n *html.Node, depth int) error {
	indent := strings.Repeat(indentUnit, depth)

	switch n.Type {
	case html.DoctypeNode:
		fmt.Fprintf(buf, "%s<!DOCTYPE %s>\n", indent, n.Data)
	case html.CommentNode:
		fmt.Fprintf(buf, "%s<!--%s-->\n", indent, n.Data)
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			buf.WriteString(indent)
			buf.WriteString(html.EscapeString(collapseSpace(text)))
			buf.WriteByte('\n')
		}
	case html.ElementNode:
		buf.WriteString(indent)
		if preserved(n) {
			// Render the subtree verbatim.
			if err := html.Render(buf, n); err != nil {
				return err
			}
			buf.WriteByte('\n')
			return nil
		}
		writeStartTag(buf, n)
		if isVoid(n) {
			buf.WriteByte('\n')
			return nil
		}
		if n.FirstChild == nil {
			fmt.Fprintf(buf, "</%s>\n", n.Data)
			return nil
		}
		buf.WriteByte('\n')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := writeNode(buf, c, depth+1); err != nil {
				return err
			}
		}
		fmt.Fprintf(buf, "%s</%s>\n", indent, n.Data)
	}
	return nil
}

func writeStartTag(buf *bytes.Buffer, n *html.Node) {
	buf.WriteByte('<')
	buf.WriteString(n.Data)
	for _, a := range n.Attr {
		buf.WriteByte(' ')
		if a.Namespace != "" {
			buf.WriteString(a.Namespace)
			buf.WriteByte(':')
		}
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		buf.WriteString(html.EscapeString(a.Val))
		buf.WriteByte('"')
	}
	buf.WriteByte('>')
}

func preserved(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Pre, atom.Textarea, atom.Script, atom.Style:
		return true
	}
	return false
}

func isVoid(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
		atom.Input, atom.Link, atom.Meta, atom.Source, atom.Track, atom.Wbr:
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
