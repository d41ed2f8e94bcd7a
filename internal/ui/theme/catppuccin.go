package theme

import "github.com/charmbracelet/lipgloss"

// CatppuccinMochaTheme returns the Catppuccin Mocha theme
// Based on: https://github.com/catppuccin/catppuccin
func CatppuccinMochaTheme() Theme {
	return Theme{
		Name: "catppuccin-mocha",

		Foreground: lipgloss.Color("#cdd6f4"), // Text
		Border:     lipgloss.Color("#45475a"), // Surface1
		Muted:      lipgloss.Color("#6c7086"), // Overlay0

		Success: lipgloss.Color("#a6e3a1"), // Green
		Warning: lipgloss.Color("#f9e2af"), // Yellow
		Error:   lipgloss.Color("#f38ba8"), // Red
		Info:    lipgloss.Color("#89dceb"), // Sky

		String: lipgloss.Color("#a6e3a1"), // Green
		Number: lipgloss.Color("#fab387"), // Peach
		Null:   lipgloss.Color("#6c7086"), // Overlay0

		TableHeader:      lipgloss.Color("#89b4fa"), // Blue
		TableHeaderBg:    lipgloss.Color("#181825"), // Mantle
		TableRowSelected: lipgloss.Color("#313244"), // Surface0
		PrimaryKey:       lipgloss.Color("#f9e2af"), // Yellow

		FilterEnabled:  lipgloss.Color("#a6e3a1"), // Green
		FilterDisabled: lipgloss.Color("#6c7086"), // Overlay0
		Tag:            lipgloss.Color("#cba6f7"), // Mauve
	}
}
