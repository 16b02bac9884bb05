// Package clipfmt turns Markdown or HTML into the three representations a
// rich clipboard carries: RTF, plain text and CF_HTML.
package clipfmt

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Payload is one clipboard write. HTML already carries its CF_HTML header.
type Payload struct {
	RTF  string
	Text string
	HTML string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

func FromMarkdown(md string) (Payload, error) {
	fragment, err := MarkdownToHTML(md)
	if err != nil {
		return Payload{}, err
	}
	return FromHTML(fragment)
}

// FromHTML wraps an HTML fragment into a document and derives the other
// formats from it.
func FromHTML(fragment string) (Payload, error) {
	doc := Document(fragment)
	rtf, err := HTMLToRTF(doc)
	if err != nil {
		return Payload{}, err
	}
	text, err := HTMLToText(doc)
	if err != nil {
		return Payload{}, err
	}
	return Payload{RTF: rtf, Text: text, HTML: WithHeader(doc)}, nil
}
