package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoClipboard is returned when no clipboard tool is available.
var ErrNoClipboard = errors.New("no clipboard tool found")

// Clipboard copies text with the platform clipboard tool.
type Clipboard struct {
	runner  *Runner
	command []string
}

// ClipboardOption configures a Clipboard.
type ClipboardOption func(*Clipboard)

// WithClipboardCommand overrides the detected clipboard tool.
func WithClipboardCommand(name string, args ...string) ClipboardOption {
	return func(c *Clipboard) {
		c.command = append([]string{name}, args...)
	}
}

// NewClipboard creates a clipboard running through runner (a default one when nil).
func NewClipboard(runner *Runner, opts ...ClipboardOption) *Clipboard {
	if runner == nil {
		runner = NewRunner()
	}
	c := &Clipboard{runner: runner}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy implements ports.Clipboard.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	command := c.command
	if len(command) == 0 {
		var err error
		if command, err = detectClipboard(); err != nil {
			return err
		}
	}
	_, err := c.runner.run(ctx, nil, strings.NewReader(text), command[0], command[1:]...)
	return err
}

func detectClipboard() ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		return []string{"pbcopy"}, nil
	case "linux", "freebsd", "openbsd":
		// Try wl-copy first on Wayland, then xclip and xsel
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return []string{"wl-copy"}, nil
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return []string{"xclip", "-selection", "clipboard"}, nil
		}
		if _, err := exec.LookPath("xsel"); err == nil {
			return []string{"xsel", "--clipboard", "--input"}, nil
		}
		return nil, fmt.Errorf("%w (install wl-clipboard, xclip or xsel)", ErrNoClipboard)
	case "windows":
		return []string{"clip"}, nil
	}
	return nil, fmt.Errorf("%w: unsupported OS %s", ErrNoClipboard, runtime.GOOS)
}
