package theme

import "github.com/charmbracelet/lipgloss"

// DefaultTheme returns the default dark theme
func DefaultTheme() Theme {
	return Theme{
		Name: "default",

		Foreground: lipgloss.Color("252"),
		Border:     lipgloss.Color("240"),
		Muted:      lipgloss.Color("245"),

		Success: lipgloss.Color("42"),
		Warning: lipgloss.Color("220"),
		Error:   lipgloss.Color("196"),
		Info:    lipgloss.Color("75"),

		String: lipgloss.Color("180"),
		Number: lipgloss.Color("150"),
		Null:   lipgloss.Color("241"),

		TableHeader:      lipgloss.Color("105"), // Purple
		TableHeaderBg:    lipgloss.Color("236"),
		TableRowSelected: lipgloss.Color("25"),
		PrimaryKey:       lipgloss.Color("220"),

		FilterEnabled:  lipgloss.Color("42"),
		FilterDisabled: lipgloss.Color("245"),
		Tag:            lipgloss.Color("75"),
	}
}
