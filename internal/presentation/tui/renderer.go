// Package tui renders output and asks questions in the terminal.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// Renderer implements ports.Renderer with colored lines and glamour markdown.
type Renderer struct {
	mu       sync.Mutex
	w        io.Writer
	out      *termenv.Output
	markdown func(string) (string, error)
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithWriter sets the destination (stdout by default).
func WithWriter(w io.Writer) RendererOption {
	return func(r *Renderer) {
		r.w = w
	}
}

// Plain disables colors and markdown styling.
func Plain() RendererOption {
	return func(r *Renderer) {
		r.markdown = nil
		r.out = nil
	}
}

// NewRenderer creates a terminal renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{w: os.Stdout}
	r.markdown = newMarkdownRenderer()
	for _, opt := range opts {
		opt(r)
	}
	if r.out == nil && r.markdown != nil {
		r.out = termenv.NewOutput(r.w)
	}
	return r
}

// newMarkdownRenderer returns a function that renders markdown using glamour.
func newMarkdownRenderer() func(string) (string, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return tr.Render
}

func (r *Renderer) Message(format string, args ...any) {
	r.line("", format, args...)
}

func (r *Renderer) Success(format string, args ...any) {
	r.line("#22c55e", format, args...)
}

func (r *Renderer) Warning(format string, args ...any) {
	r.line("#f59e0b", format, args...)
}

// Markdown renders doc with glamour, falling back to the raw text.
func (r *Renderer) Markdown(doc string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.markdown != nil {
		if rendered, err := r.markdown(doc); err == nil {
			fmt.Fprint(r.w, rendered)
			return
		}
	}
	fmt.Fprint(r.w, doc)
	if !strings.HasSuffix(doc, "\n") {
		fmt.Fprintln(r.w)
	}
}

func (r *Renderer) line(color, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := fmt.Sprintf(format, args...)
	if r.out != nil && color != "" {
		fmt.Fprintln(r.w, r.out.String(text).Foreground(r.out.Color(color)))
		return
	}
	fmt.Fprintln(r.w, text)
}
