package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Spotify brand colors plus the status colors used across views.
const (
	colorGreen = lipgloss.Color("#1DB954")
	colorOK    = lipgloss.Color("#04B575")
	colorError = lipgloss.Color("#E22134")
	colorWarn  = lipgloss.Color("#FFA42B")
	colorMuted = lipgloss.Color("#727272")
)

var styles = newPalette()

type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	bar   lipgloss.Style
}

func newPalette() palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return palette{
		title: fg(colorGreen).Bold(true).MarginBottom(1),
		ok:    fg(colorOK).Bold(true),
		err:   fg(colorError).Bold(true),
		warn:  fg(colorWarn),
		help:  fg(colorMuted).Italic(true),
		bar:   lipgloss.NewStyle().Background(colorGreen),
	}
}

// sizeBar renders a cluster's share of the library as a bar of the given width.
func sizeBar(proportion float64, width int) string {
	filled := int(proportion / 100 * float64(width))
	if proportion > 0 && filled == 0 {
		filled = 1
	}
	filled = min(filled, width)

	return styles.bar.Render(strings.Repeat(" ", filled)) + strings.Repeat("·", width-filled)
}
