package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/listinsight/internal/filter"
	"github.com/rebeliceyang/listinsight/internal/ui/theme"
)

// FilterList renders a filter set as a checkbox list
type FilterList struct {
	Title string
	Items []filter.Item
	Theme theme.Theme
}

// NewFilterList creates a filter list for set
func NewFilterList(title string, set *filter.Set, th theme.Theme) *FilterList {
	return &FilterList{
		Title: title,
		Items: set.Items(),
		Theme: th,
	}
}

// Marker returns the checkbox shown for an item. A failed filter is marked
// regardless of its checked state.
func Marker(item filter.Item) string {
	switch {
	case item.Failed:
		return "[!]"
	case item.Checked:
		return "[x]"
	default:
		return "[ ]"
	}
}

// View renders the list
func (fl *FilterList) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(fl.Theme.Info)
	b.WriteString(titleStyle.Render(fmt.Sprintf("Filters (%s)", fl.Title)))
	b.WriteString("\n")

	if len(fl.Items) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(fl.Theme.Muted).Render("  no filters"))
		return b.String()
	}

	for i, item := range fl.Items {
		style := lipgloss.NewStyle().Foreground(fl.Theme.FilterDisabled)
		switch {
		case item.Failed:
			style = lipgloss.NewStyle().Foreground(fl.Theme.Error)
		case item.Checked:
			style = lipgloss.NewStyle().Foreground(fl.Theme.FilterEnabled)
		}
		b.WriteString(style.Render(fmt.Sprintf("  %s %d  %s", Marker(item), item.Index, item.Text)))
		if i < len(fl.Items)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
