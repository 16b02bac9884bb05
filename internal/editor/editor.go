package editor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNoEditor = errors.New("no editor configured")

// TempFile writes content to a fresh Markdown file in the temp directory.
func TempFile(content string) (string, error) {
	path := filepath.Join(os.TempDir(), "taskman-note-"+uuid.New().String()+".md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write note file: %w", err)
	}
	return path, nil
}

// Command builds the process that edits path. editor may carry arguments,
// as in "code --wait".
func Command(editor, path string) (*exec.Cmd, error) {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return nil, ErrNoEditor
	}
	args := append(fields[1:], path)
	return exec.Command(fields[0], args...), nil
}

// Collect reads the edited file back and removes it.
func Collect(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read note file: %w", err)
	}
	_ = os.Remove(path)
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// Edit runs the editor on content attached to the current terminal and
// returns the result.
func Edit(editor, content string) (string, error) {
	path, err := TempFile(content)
	if err != nil {
		return "", err
	}
	cmd, err := Command(editor, path)
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("editor %q: %w", editor, err)
	}
	return Collect(path)
}
