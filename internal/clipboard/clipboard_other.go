//go:build !windows

package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"taskman/internal/clipfmt"
)

const formatPlain = "text/plain"

// textClipboard only carries plain text; RTF and HTML are dropped.
type textClipboard struct {
	log *zap.Logger
}

func newSystem(log *zap.Logger) Writer {
	return &textClipboard{log: log}
}

func (c *textClipboard) Write(p clipfmt.Payload) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(p.Text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	c.log.Debug("clipboard written", zap.Int("text", len(p.Text)))
	return nil
}

func (c *textClipboard) Formats() ([]Format, error) {
	if clipboard.Unsupported {
		return nil, ErrUnsupported
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	return []Format{{Name: formatPlain, Size: len(text)}}, nil
}

func (c *textClipboard) Text(f Format) (string, error) {
	if f.Name != formatPlain {
		return "", ErrNotText
	}
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}
