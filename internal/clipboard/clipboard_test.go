package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/clipfmt"
)

func TestRecorderKeepsPayloads(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	assert.False(t, ok)
	formats, err := r.Formats()
	require.NoError(t, err)
	assert.Empty(t, formats)

	p, err := clipfmt.FromMarkdown("hello *world*")
	require.NoError(t, err)
	require.NoError(t, r.Write(clipfmt.Payload{Text: "first"}))
	require.NoError(t, r.Write(p))

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, p, last)
	assert.Len(t, r.Payloads, 2)

	formats, err = r.Formats()
	require.NoError(t, err)
	require.Len(t, formats, 3)
	assert.Equal(t, FormatRTF, formats[0].Name)
	assert.Equal(t, len(p.RTF), formats[0].Size)
	assert.Equal(t, uint32(cfUnicodeText), formats[1].ID)
	assert.Equal(t, FormatHTML, formats[2].Name)
	assert.Equal(t, len(p.HTML), formats[2].Size)

	text, err := r.Text(formats[1])
	require.NoError(t, err)
	assert.Equal(t, p.Text, text)
	html, err := r.Text(formats[2])
	require.NoError(t, err)
	assert.Equal(t, p.HTML, html)
	_, err = r.Text(Format{ID: 2, Name: "CF_BITMAP"})
	assert.ErrorIs(t, err, ErrNotText)
}
