package clipfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	startMarker  = "<!--StartFragment-->"
	endMarker    = "<!--EndFragment-->"
	headerFormat = "Version:1.0\nStartHTML:%010d\nEndHTML:%010d\nStartFragment:%010d\nEndFragment:%010d\n"
)

var ErrBadHeader = errors.New("malformed CF_HTML header")

// Header holds the byte offsets of a CF_HTML payload, counted from the
// first byte of the header.
type Header struct {
	Version       string
	StartHTML     int
	EndHTML       int
	StartFragment int
	EndFragment   int
}

func Document(fragment string) string {
	return "<html><body>" + startMarker + fragment + endMarker + "</body></html>"
}

// WithHeader prefixes doc with a CF_HTML description. Without fragment
// markers the whole document is the fragment.
func WithHeader(doc string) string {
	n := len(fmt.Sprintf(headerFormat, 0, 0, 0, 0))
	h := Header{
		StartHTML:     n,
		EndHTML:       n + len(doc),
		StartFragment: n,
		EndFragment:   n + len(doc),
	}
	if i := strings.Index(doc, startMarker); i >= 0 {
		if j := strings.LastIndex(doc, endMarker); j >= i+len(startMarker) {
			h.StartFragment = n + i + len(startMarker)
			h.EndFragment = n + j
		}
	}
	return fmt.Sprintf(headerFormat, h.StartHTML, h.EndHTML, h.StartFragment, h.EndFragment) + doc
}

// ParseHeader reads the description block at the start of a CF_HTML
// payload and checks its offsets against the payload length.
func ParseHeader(payload string) (Header, error) {
	var h Header
	seen := map[string]bool{}
	rest := payload
	for rest != "" && !strings.HasPrefix(rest, "<") {
		line, tail, ok := strings.Cut(rest, "\n")
		if !ok {
			return h, fmt.Errorf("%w: unterminated line", ErrBadHeader)
		}
		rest = tail
		key, value, ok := strings.Cut(strings.TrimSuffix(line, "\r"), ":")
		if !ok {
			return h, fmt.Errorf("%w: %q", ErrBadHeader, line)
		}
		seen[key] = true
		if key == "Version" {
			h.Version = value
			continue
		}
		var dst *int
		switch key {
		case "StartHTML":
			dst = &h.StartHTML
		case "EndHTML":
			dst = &h.EndHTML
		case "StartFragment":
			dst = &h.StartFragment
		case "EndFragment":
			dst = &h.EndFragment
		default:
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return h, fmt.Errorf("%w: %s: %v", ErrBadHeader, key, err)
		}
		*dst = n
	}
	for _, key := range []string{"Version", "StartHTML", "EndHTML", "StartFragment", "EndFragment"} {
		if !seen[key] {
			return h, fmt.Errorf("%w: missing %s", ErrBadHeader, key)
		}
	}
	if h.StartHTML > h.StartFragment || h.StartFragment > h.EndFragment ||
		h.EndFragment > h.EndHTML || h.EndHTML > len(payload) {
		return h, fmt.Errorf("%w: offsets out of range", ErrBadHeader)
	}
	return h, nil
}

// Fragment extracts the fragment a CF_HTML payload points at.
func Fragment(payload string) (string, error) {
	h, err := ParseHeader(payload)
	if err != nil {
		return "", err
	}
	return payload[h.StartFragment:h.EndFragment], nil
}
