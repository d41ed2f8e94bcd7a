package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/listinsight/internal/models"
	"github.com/rebeliceyang/listinsight/internal/ui/theme"
)

// ShortlistView renders shortlist items, findings first marked with a star
type ShortlistView struct {
	Items     []models.ShortlistItem
	BodyWidth int
	Theme     theme.Theme
}

// View renders the shortlist
func (sv *ShortlistView) View() string {
	if len(sv.Items) == 0 {
		return lipgloss.NewStyle().Foreground(sv.Theme.Muted).Render("Shortlist is empty")
	}

	titleStyle := lipgloss.NewStyle().Bold(true)
	findingStyle := titleStyle.Foreground(sv.Theme.Warning)
	tagStyle := lipgloss.NewStyle().Foreground(sv.Theme.Tag)

	lines := make([]string, 0, len(sv.Items))
	for _, item := range sv.Items {
		marker, style := "  ", titleStyle
		if item.Finding {
			marker, style = "★ ", findingStyle
		}

		line := marker + style.Render(item.Title)
		if len(item.Tags) > 0 {
			line += " " + tagStyle.Render("["+strings.Join(item.Tags, ", ")+"]")
		}
		if item.Body != "" {
			body := strings.ReplaceAll(item.Body, "\n", " ")
			if sv.BodyWidth > 0 {
				body = runewidth.Truncate(body, sv.BodyWidth, "...")
			}
			line += "\n    " + body
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
