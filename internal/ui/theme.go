package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	AccentText lipgloss.Color
	Muted      lipgloss.Color
	Dark       bool
}

var themes = []Theme{
	{Name: "normal", Background: "#ffffff", Foreground: "#000000", Accent: "#0a64a4", AccentText: "#ffffff", Muted: "#8a8a8a"},
	{Name: "dark", Background: "#1e1e1e", Foreground: "#ffffff", Accent: "#3c3f41", AccentText: "#ffffff", Muted: "#7a7a7a", Dark: true},
	{Name: "old_book", Background: "#f5f5dc", Foreground: "#333333", Accent: "#c2b280", AccentText: "#333333", Muted: "#8b7d6b"},
	{Name: "gray_red", Background: "#cccccc", Foreground: "#333333", Accent: "#ff6347", AccentText: "#ffffff", Muted: "#666666"},
	{Name: "orange_blue", Background: "#ffcc99", Foreground: "#003366", Accent: "#003366", AccentText: "#ffffff", Muted: "#996633"},
}

func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// ThemeByName falls back to the first theme for unknown names.
func ThemeByName(name string) (Theme, bool) {
	for _, t := range themes {
		if t.Name == name {
			return t, true
		}
	}
	return themes[0], false
}

func (t Theme) next() Theme {
	for i, th := range themes {
		if th.Name == t.Name {
			return themes[(i+1)%len(themes)]
		}
	}
	return themes[0]
}

type styles struct {
	app         lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	activePanel lipgloss.Style
	header      lipgloss.Style
	cursor      lipgloss.Style
	selected    lipgloss.Style
	muted       lipgloss.Style
	status      lipgloss.Style
	help        lipgloss.Style
}

func (t Theme) styles() styles {
	base := lipgloss.NewStyle().Foreground(t.Foreground).Background(t.Background)
	panel := base.Border(lipgloss.RoundedBorder()).BorderForeground(t.Muted).
		BorderBackground(t.Background).Padding(0, 1)
	return styles{
		app:         base,
		title:       base.Bold(true),
		panel:       panel,
		activePanel: panel.BorderForeground(t.Accent),
		header:      base.Bold(true).Underline(true),
		cursor:      lipgloss.NewStyle().Foreground(t.AccentText).Background(t.Accent).Bold(true),
		selected:    base.Bold(true).Foreground(t.Accent),
		muted:       base.Foreground(t.Muted),
		status:      base.Italic(true),
		help:        base.Foreground(t.Muted),
	}
}

// RenderMarkdown renders a note for the terminal.
func RenderMarkdown(md string, width int, dark bool) (string, error) {
	style := "light"
	if dark {
		style = "dark"
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
