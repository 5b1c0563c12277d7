package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the wflow banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"                 __ _               ", "#818cf8"},
		{" __      __     / _| | _____      __", "#a78bfa"},
		{" \\ \\ /\\ / /____| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"  \\ V  V /_____|  _| | (_) \\ V  V / ", "#e879f9"},
		{"   \\_/\\_/      |_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
