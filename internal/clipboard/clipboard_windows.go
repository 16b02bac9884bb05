//go:build windows

package clipboard

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"taskman/internal/clipfmt"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard            = user32.NewProc("OpenClipboard")
	procCloseClipboard           = user32.NewProc("CloseClipboard")
	procEmptyClipboard           = user32.NewProc("EmptyClipboard")
	procSetClipboardData         = user32.NewProc("SetClipboardData")
	procGetClipboardData         = user32.NewProc("GetClipboardData")
	procEnumClipboardFormats     = user32.NewProc("EnumClipboardFormats")
	procRegisterClipboardFormatW = user32.NewProc("RegisterClipboardFormatW")
	procGetClipboardFormatNameW  = user32.NewProc("GetClipboardFormatNameW")
	procGlobalAlloc              = kernel32.NewProc("GlobalAlloc")
	procGlobalFree               = kernel32.NewProc("GlobalFree")
	procGlobalLock               = kernel32.NewProc("GlobalLock")
	procGlobalUnlock             = kernel32.NewProc("GlobalUnlock")
	procGlobalSize               = kernel32.NewProc("GlobalSize")
	procRtlMoveMemory            = kernel32.NewProc("RtlMoveMemory")
)

const (
	gmemMoveable = 0x0002
	openAttempts = 10
	openBackoff  = 20 * time.Millisecond
)

var standardFormats = map[uint32]string{
	1:  "CF_TEXT",
	2:  "CF_BITMAP",
	3:  "CF_METAFILEPICT",
	7:  "CF_OEMTEXT",
	8:  "CF_DIB",
	13: "CF_UNICODETEXT",
	14: "CF_ENHMETAFILE",
	15: "CF_HDROP",
	16: "CF_LOCALE",
	17: "CF_DIBV5",
}

type winClipboard struct {
	log *zap.Logger
}

func newSystem(log *zap.Logger) Writer {
	return &winClipboard{log: log}
}

// session opens the clipboard, runs fn and closes it again. The clipboard
// belongs to the calling thread while open.
func (c *winClipboard) session(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var lastErr error
	opened := false
	for i := 0; i < openAttempts; i++ {
		r, _, err := procOpenClipboard.Call(0)
		if r != 0 {
			opened = true
			break
		}
		lastErr = err
		time.Sleep(openBackoff)
	}
	if !opened {
		return fmt.Errorf("open clipboard: %w", lastErr)
	}
	defer procCloseClipboard.Call()
	return fn()
}

func (c *winClipboard) Write(p clipfmt.Payload) error {
	err := c.session(func() error {
		if r, _, err := procEmptyClipboard.Call(); r == 0 {
			return fmt.Errorf("empty clipboard: %w", err)
		}
		rtf, err := registerFormat(FormatRTF)
		if err != nil {
			return err
		}
		if err := setData(rtf, nulTerminated(p.RTF)); err != nil {
			return fmt.Errorf("set rtf: %w", err)
		}
		text, err := windows.UTF16FromString(strings.ReplaceAll(p.Text, "\x00", ""))
		if err != nil {
			return err
		}
		if err := setData(cfUnicodeText, unsafe.Slice((*byte)(unsafe.Pointer(&text[0])), len(text)*2)); err != nil {
			return fmt.Errorf("set text: %w", err)
		}
		htmlFormat, err := registerFormat(FormatHTML)
		if err != nil {
			return err
		}
		if err := setData(htmlFormat, nulTerminated(p.HTML)); err != nil {
			return fmt.Errorf("set html: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Debug("clipboard written", zap.Int("rtf", len(p.RTF)), zap.Int("text", len(p.Text)), zap.Int("html", len(p.HTML)))
	return nil
}

func (c *winClipboard) Formats() ([]Format, error) {
	var out []Format
	err := c.session(func() error {
		var f uintptr
		for {
			f, _, _ = procEnumClipboardFormats.Call(f)
			if f == 0 {
				return nil
			}
			id := uint32(f)
			out = append(out, Format{ID: id, Name: formatName(id), Size: dataSize(id)})
		}
	})
	return out, err
}

func (c *winClipboard) Text(f Format) (string, error) {
	if !isText(f) {
		return "", ErrNotText
	}
	var data []byte
	err := c.session(func() error {
		var err error
		data, err = readData(f.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	if f.ID == cfUnicodeText {
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
		return windows.UTF16ToString(units), nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

func isText(f Format) bool {
	switch f.ID {
	case cfText, cfOEMText, cfUnicodeText:
		return true
	}
	return f.Name == FormatRTF || f.Name == FormatHTML
}

// readData copies a format's global memory into a Go slice. The clipboard
// must be open.
func readData(id uint32) ([]byte, error) {
	h, _, err := procGetClipboardData.Call(uintptr(id))
	if h == 0 {
		return nil, fmt.Errorf("get format %d: %w", id, err)
	}
	size, _, _ := procGlobalSize.Call(h)
	if size == 0 {
		return nil, nil
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fmt.Errorf("lock: %w", err)
	}
	defer procGlobalUnlock.Call(h)
	buf := make([]byte, size)
	procRtlMoveMemory.Call(uintptr(unsafe.Pointer(&buf[0])), ptr, size)
	return buf, nil
}

func registerFormat(name string) (uint32, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	r, _, callErr := procRegisterClipboardFormatW.Call(uintptr(unsafe.Pointer(p)))
	if r == 0 {
		return 0, fmt.Errorf("register %q: %w", name, callErr)
	}
	return uint32(r), nil
}

// setData copies data into movable global memory and hands it to the
// clipboard, which owns it from then on.
func setData(format uint32, data []byte) error {
	h, _, err := procGlobalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("alloc: %w", err)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("lock: %w", err)
	}
	// global memory is copied by the OS so no uintptr becomes a Go pointer
	procRtlMoveMemory.Call(ptr, uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
	procGlobalUnlock.Call(h)

	if r, _, err := procSetClipboardData.Call(uintptr(format), h); r == 0 {
		procGlobalFree.Call(h)
		return err
	}
	return nil
}

func formatName(id uint32) string {
	if name, ok := standardFormats[id]; ok {
		return name
	}
	buf := make([]uint16, 256)
	n, _, _ := procGetClipboardFormatNameW.Call(uintptr(id), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return fmt.Sprintf("format %d", id)
	}
	return windows.UTF16ToString(buf[:n])
}

func dataSize(id uint32) int {
	h, _, _ := procGetClipboardData.Call(uintptr(id))
	if h == 0 {
		return 0
	}
	n, _, _ := procGlobalSize.Call(h)
	return int(n)
}

func nulTerminated(s string) []byte {
	return append([]byte(s), 0)
}
