package clipfmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRun     = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText renders an HTML document as readable plain text: blocks are
// separated by blank lines, list items get an indented bullet and links
// are written as [text](href).
func HTMLToText(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	w := &textWriter{}
	w.walk(doc)

	lines := strings.Split(w.sb.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	out := blankLineRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(out, "\n"), nil
}

type textWriter struct {
	sb     strings.Builder
	lists  []int // item counter per open list, -1 for unordered
	pre    int
	bullet bool
}

func (w *textWriter) atLineStart() bool {
	s := w.sb.String()
	return s == "" || strings.HasSuffix(s, "\n")
}

func (w *textWriter) newline() {
	if !w.atLineStart() {
		w.sb.WriteString("\n")
	}
}

func (w *textWriter) block() {
	if w.bullet {
		return
	}
	w.newline()
	if len(w.lists) > 0 {
		return
	}
	if s := w.sb.String(); s != "" && !strings.HasSuffix(s, "\n\n") {
		w.sb.WriteString("\n")
	}
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	w.bullet = false
	w.sb.WriteString(s)
}

func (w *textWriter) text(s string) {
	if w.pre > 0 {
		w.write(s)
		return
	}
	s = spaceRun.ReplaceAllString(s, " ")
	if cur := w.sb.String(); w.atLineStart() || strings.HasSuffix(cur, " ") {
		s = strings.TrimLeft(s, " ")
	}
	w.write(s)
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch n.Data {
	case "head", "script", "style", "title":
		return
	case "br":
		w.sb.WriteString("\n")
		return
	case "hr":
		w.block()
		w.write("----")
		w.block()
		return
	case "input":
		if attr(n, "type") == "checkbox" {
			if hasAttr(n, "checked") {
				w.write("[x] ")
			} else {
				w.write("[ ] ")
			}
		}
		return
	case "p", "div", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "table":
		w.block()
		if level, err := strconv.Atoi(strings.TrimPrefix(n.Data, "h")); err == nil && len(n.Data) == 2 {
			w.write(strings.Repeat("#", level) + " ")
		}
		w.children(n)
		w.block()
	case "pre":
		w.block()
		w.pre++
		w.children(n)
		w.pre--
		w.block()
	case "tr":
		w.newline()
		w.children(n)
	case "td", "th":
		if !w.atLineStart() {
			w.write(" | ")
		}
		w.children(n)
	case "ul", "ol":
		if len(w.lists) == 0 {
			w.block()
		} else {
			w.newline()
		}
		counter := -1
		if n.Data == "ol" {
			counter = 0
			if start, err := strconv.Atoi(attr(n, "start")); err == nil {
				counter = start - 1
			}
		}
		w.lists = append(w.lists, counter)
		w.children(n)
		w.lists = w.lists[:len(w.lists)-1]
		if len(w.lists) == 0 {
			w.block()
		} else {
			w.newline()
		}
	case "li":
		w.newline()
		depth := len(w.lists)
		marker := "* "
		if depth > 0 && w.lists[depth-1] >= 0 {
			w.lists[depth-1]++
			marker = strconv.Itoa(w.lists[depth-1]) + ". "
		}
		w.write(strings.Repeat("  ", max(depth-1, 0)) + marker)
		w.bullet = true
		w.children(n)
		w.bullet = false
	case "a":
		href := attr(n, "href")
		if href == "" || strings.HasPrefix(href, "#") {
			w.children(n)
			return
		}
		w.write("[")
		w.children(n)
		w.write("](" + href + ")")
	case "strong", "b":
		w.write("**")
		w.children(n)
		w.write("**")
	case "em", "i":
		w.write("_")
		w.children(n)
		w.write("_")
	case "code":
		if w.pre > 0 {
			w.children(n)
			return
		}
		w.write("`")
		w.children(n)
		w.write("`")
	default:
		w.children(n)
	}
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
