//go:build windows

package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskman/internal/clipfmt"
)

func TestWindowsClipboardRoundTrip(t *testing.T) {
	c := New(zap.NewNop())
	p, err := clipfmt.FromMarkdown("**Soply** é 😀")
	require.NoError(t, err)
	require.NoError(t, c.Write(p))

	formats, err := c.Formats()
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range formats {
		text, err := c.Text(f)
		if err != nil {
			continue
		}
		got[f.Name] = text
	}
	assert.Equal(t, p.Text, got["CF_UNICODETEXT"])
	assert.Equal(t, p.RTF, got[FormatRTF])
	assert.Equal(t, p.HTML, got[FormatHTML])
}
