package clipfmt

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
)

const rtfPrologue = `{\rtf1\ansi\ansicpg1252\deff0\nouicompat{\fonttbl{\f0\fnil\fcharset0 Calibri;}}` + "\n" +
	`{\*\generator Riched20 10.0.18362;}\viewkind4\uc1` + "\n"

// HTMLToRTF keeps the paragraphs of an HTML document. A paragraph holding
// bold or italic text is rendered bold or italic as a whole.
func HTMLToRTF(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(rtfPrologue)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			sb.WriteString(`\pard `)
			if contains(n, "strong", "b") {
				sb.WriteString(`\b `)
			}
			if contains(n, "em", "i") {
				sb.WriteString(`\i `)
			}
			sb.WriteString(rtfEscape(strings.ReplaceAll(textOf(n), "\n", " ")))
			sb.WriteString(` \par `)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	sb.WriteString("}")
	return sb.String(), nil
}

func contains(n *html.Node, tags ...string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for _, t := range tags {
				if c.Data == t {
					return true
				}
			}
		}
		if contains(c, tags...) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func rtfEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '{' || r == '}':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\r':
		case r == '\t':
			sb.WriteString(`\tab `)
		case r < 0x80:
			sb.WriteRune(r)
		default:
			// \uN takes a signed 16-bit value; astral runes need a surrogate pair
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&sb, `\u%d?`, int16(u))
			}
		}
	}
	return sb.String()
}
