package render

import "github.com/charmbracelet/lipgloss"

// Theme is the colour palette of the terminal cards.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Up    lipgloss.Color
	Down  lipgloss.Color
	Error lipgloss.Color
	Muted lipgloss.Color
	Text  lipgloss.Color
}

// DefaultTheme returns the dashboard palette.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#7C3AED"),
		Secondary: lipgloss.Color("#06B6D4"),
		Accent:    lipgloss.Color("#F59E0B"),
		Up:        lipgloss.Color("#10B981"),
		Down:      lipgloss.Color("#EF4444"),
		Error:     lipgloss.Color("#EF4444"),
		Muted:     lipgloss.Color("#6B7280"),
		Text:      lipgloss.Color("#F9FAFB"),
	}
}

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	Card      lipgloss.Style
	ErrorCard lipgloss.Style
	Title     lipgloss.Style
	Value     lipgloss.Style
	Up        lipgloss.Style
	Down      lipgloss.Style
	Muted     lipgloss.Style

	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Failure   lipgloss.Style
}

// NewStyles builds the styles of t.
func NewStyles(t Theme) Styles {
	return Styles{
		Card: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
		ErrorCard: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Error).
			Foreground(t.Error).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),
		Value: lipgloss.NewStyle().
			Foreground(t.Text).
			Bold(true),
		Up:    lipgloss.NewStyle().Foreground(t.Up),
		Down:  lipgloss.NewStyle().Foreground(t.Down),
		Muted: lipgloss.NewStyle().Foreground(t.Muted),

		User: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),
		Assistant: lipgloss.NewStyle().
			Foreground(t.Text),
		System: lipgloss.NewStyle().
			Foreground(t.Muted).
			Italic(true),
		Failure: lipgloss.NewStyle().
			Foreground(t.Error),
	}
}

// DefaultStyles returns the styles of DefaultTheme.
func DefaultStyles() Styles {
	return NewStyles(DefaultTheme())
}
