package clipboard

import (
	"errors"

	"go.uber.org/zap"

	"taskman/internal/clipfmt"
)

var (
	ErrUnsupported = errors.New("no clipboard available")
	ErrNotText     = errors.New("clipboard format is not text")
)

// Format is one entry of the clipboard's current content.
type Format struct {
	ID   uint32
	Name string
	Size int
}

type Writer interface {
	Write(p clipfmt.Payload) error
	Formats() ([]Format, error)
	// Text reads back the content of a textual format listed by Formats.
	Text(f Format) (string, error)
}

// New returns the clipboard of the running platform.
func New(log *zap.Logger) Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return newSystem(log)
}

// Recorder keeps payloads in memory instead of touching the OS clipboard.
type Recorder struct {
	Payloads []clipfmt.Payload
}

func (r *Recorder) Write(p clipfmt.Payload) error {
	r.Payloads = append(r.Payloads, p)
	return nil
}

func (r *Recorder) Last() (clipfmt.Payload, bool) {
	if len(r.Payloads) == 0 {
		return clipfmt.Payload{}, false
	}
	return r.Payloads[len(r.Payloads)-1], true
}

func (r *Recorder) Formats() ([]Format, error) {
	p, ok := r.Last()
	if !ok {
		return nil, nil
	}
	return []Format{
		{Name: FormatRTF, Size: len(p.RTF)},
		{ID: cfUnicodeText, Name: "CF_UNICODETEXT", Size: len(p.Text)},
		{Name: FormatHTML, Size: len(p.HTML)},
	}, nil
}

func (r *Recorder) Text(f Format) (string, error) {
	p, ok := r.Last()
	if !ok {
		return "", ErrNotText
	}
	switch {
	case f.Name == FormatRTF:
		return p.RTF, nil
	case f.Name == FormatHTML:
		return p.HTML, nil
	case f.ID == cfUnicodeText:
		return p.Text, nil
	}
	return "", ErrNotText
}

const (
	FormatRTF  = "Rich Text Format"
	FormatHTML = "HTML Format"

	cfText        = 1
	cfOEMText     = 7
	cfUnicodeText = 13
)
