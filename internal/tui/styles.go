package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the model.
type Styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Done     lipgloss.Style
	Error    lipgloss.Style
	Status   lipgloss.Style
	Input    lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() *Styles {
	var (
		primary = lipgloss.Color("#7C3AED")
		fg      = lipgloss.Color("#CDD6F4")
		muted   = lipgloss.Color("#6C7086")
		success = lipgloss.Color("#A6E3A1")
		failure = lipgloss.Color("#F38BA8")
		border  = lipgloss.Color("#45475A")
	)
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(fg).
			Background(primary),
		Done: lipgloss.NewStyle().
			Foreground(success).
			Strikethrough(true),
		Error: lipgloss.NewStyle().
			Foreground(failure),
		Status: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(muted),
	}
}
