package editor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempFileRoundTrip(t *testing.T) {
	path, err := TempFile("# title\r\nbody")
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "taskman-note-"))

	got, err := Collect(path)
	require.NoError(t, err)
	assert.Equal(t, "# title\nbody", got)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCommandSplitsArguments(t *testing.T) {
	cmd, err := Command("code --wait", "/tmp/n.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "--wait", "/tmp/n.md"}, cmd.Args)

	_, err = Command("  ", "/tmp/n.md")
	assert.ErrorIs(t, err, ErrNoEditor)
}
