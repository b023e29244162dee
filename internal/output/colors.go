package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Header    *color.Color
	Name      *color.Color
	Number    *color.Color
	Failure   *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:    color.New(color.FgBlue, color.Bold),
		Name:      color.New(color.FgCyan),
		Number:    color.New(color.FgWhite),
		Failure:   color.New(color.FgRed, color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.Header.DisableColor()
	scheme.Name.DisableColor()
	scheme.Number.DisableColor()
	scheme.Failure.DisableColor()
	scheme.Highlight.DisableColor()

	return scheme
}

// SchemeFor picks the default scheme when f is a terminal and noColor is unset.
func SchemeFor(f *os.File, noColor bool) *ColorScheme {
	if noColor || !IsTerminal(f) {
		return NoColorScheme()
	}
	return DefaultColorScheme()
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
