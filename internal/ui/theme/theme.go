package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme and styling
type Theme struct {
	Name string

	Foreground lipgloss.Color
	Border     lipgloss.Color
	Muted      lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Cell values
	String lipgloss.Color
	Number lipgloss.Color
	Null   lipgloss.Color

	// Table colors
	TableHeader      lipgloss.Color
	TableHeaderBg    lipgloss.Color
	TableRowSelected lipgloss.Color
	PrimaryKey       lipgloss.Color

	// Filter list
	FilterEnabled  lipgloss.Color
	FilterDisabled lipgloss.Color
	Tag            lipgloss.Color
}

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMochaTheme()
	default:
		return DefaultTheme()
	}
}
