package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/models"
	"github.com/rebeliceyang/listinsight/internal/ui/theme"
	"github.com/rebeliceyang/listinsight/internal/view"
)

const (
	minColumnWidth      = 4
	defaultMaxCellWidth = 40
)

// TableView renders the visible rows of a dataset
type TableView struct {
	Title        string
	Columns      []string
	Types        []models.ColumnType
	Rows         [][]string
	Nulls        [][]bool
	PrimaryKey   int
	SelectedRow  int
	VisibleRows  int
	TotalRows    int
	MaxCellWidth int
	Status       string
	Theme        theme.Theme

	// Column widths (calculated)
	ColumnWidths []int
}

// NewTableView creates a new table view
func NewTableView(th theme.Theme) *TableView {
	return &TableView{
		Columns:      []string{},
		Rows:         [][]string{},
		PrimaryKey:   -1,
		SelectedRow:  -1,
		MaxCellWidth: defaultMaxCellWidth,
		Theme:        th,
	}
}

// SetView loads up to maxRows visible rows of v. A maxRows of zero or less
// loads every row.
func (tv *TableView) SetView(v *view.View, maxRows int) {
	ds := v.Dataset()
	columns := ds.Columns()

	tv.Title = ds.Name()
	tv.Columns = make([]string, len(columns))
	tv.Types = make([]models.ColumnType, len(columns))
	for i, c := range columns {
		tv.Columns[i] = c.Name
		tv.Types[i] = c.Type
	}
	tv.PrimaryKey = ds.PrimaryKey().Index
	tv.TotalRows = ds.RowCount()

	rows := v.Rows()
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	tv.Rows = make([][]string, len(rows))
	tv.Nulls = make([][]bool, len(rows))
	for r, row := range rows {
		tv.Rows[r] = make([]string, len(columns))
		tv.Nulls[r] = make([]bool, len(columns))
		for c := range columns {
			if c < len(row) && row[c] != nil {
				tv.Rows[r][c] = dataset.FormatValue(row[c])
			} else {
				tv.Nulls[r][c] = true
			}
		}
	}
	tv.VisibleRows = v.Len()
	tv.Status = ""
	tv.calculateColumnWidths()
}

// SetData loads a plain listing. Status replaces the row count line when set.
func (tv *TableView) SetData(headers []string, rows [][]string, status string) {
	tv.Columns = headers
	tv.Types = nil
	tv.Rows = rows
	tv.Nulls = nil
	tv.PrimaryKey = -1
	tv.VisibleRows = len(rows)
	tv.TotalRows = len(rows)
	tv.Status = status
	tv.calculateColumnWidths()
}

// calculateColumnWidths calculates optimal column widths
func (tv *TableView) calculateColumnWidths() {
	tv.ColumnWidths = make([]int, len(tv.Columns))

	for i, col := range tv.Columns {
		tv.ColumnWidths[i] = runewidth.StringWidth(col)
	}

	for _, row := range tv.Rows {
		for i, cell := range row {
			if i < len(tv.ColumnWidths) {
				if w := runewidth.StringWidth(cell); w > tv.ColumnWidths[i] {
					tv.ColumnWidths[i] = w
				}
			}
		}
	}

	maxWidth := tv.MaxCellWidth
	if maxWidth < minColumnWidth {
		maxWidth = defaultMaxCellWidth
	}
	for i := range tv.ColumnWidths {
		tv.ColumnWidths[i] = max(min(tv.ColumnWidths[i], maxWidth), minColumnWidth)
	}
}

// View renders the table
func (tv *TableView) View() string {
	if len(tv.Columns) == 0 {
		return lipgloss.NewStyle().Foreground(tv.Theme.Muted).Render("No data")
	}

	var b strings.Builder

	if tv.Title != "" {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(tv.Theme.Info).Render(tv.Title))
		b.WriteString("\n")
	}
	b.WriteString(tv.renderHeader())
	b.WriteString("\n")
	b.WriteString(tv.renderSeparator())
	b.WriteString("\n")

	for i, row := range tv.Rows {
		b.WriteString(tv.renderRow(i, row))
		b.WriteString("\n")
	}

	b.WriteString(tv.renderStatus())
	return b.String()
}

func (tv *TableView) renderHeader() string {
	parts := make([]string, len(tv.Columns))
	for i, col := range tv.Columns {
		cell := tv.pad(col, tv.ColumnWidths[i])
		if i == tv.PrimaryKey {
			cell = lipgloss.NewStyle().Foreground(tv.Theme.PrimaryKey).Render(cell)
		}
		parts[i] = cell
	}
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(tv.Theme.TableHeader).
		Background(tv.Theme.TableHeaderBg)
	return headerStyle.Render(" " + strings.Join(parts, " │ ") + " ")
}

func (tv *TableView) renderSeparator() string {
	parts := make([]string, len(tv.ColumnWidths))
	for i, width := range tv.ColumnWidths {
		parts[i] = strings.Repeat("─", width)
	}
	return lipgloss.NewStyle().
		Foreground(tv.Theme.Border).
		Render("─" + strings.Join(parts, "─┼─") + "─")
}

func (tv *TableView) renderRow(r int, row []string) string {
	parts := make([]string, 0, len(row))
	for i, cell := range row {
		if i >= len(tv.ColumnWidths) {
			break
		}
		text := tv.pad(cell, tv.ColumnWidths[i])
		switch {
		case tv.Nulls != nil && tv.Nulls[r][i]:
			text = lipgloss.NewStyle().Foreground(tv.Theme.Null).Render(text)
		case i < len(tv.Types) && tv.Types[i] == models.TypeNumeric:
			text = lipgloss.NewStyle().Foreground(tv.Theme.Number).Render(text)
		}
		parts = append(parts, text)
	}

	line := " " + strings.Join(parts, " │ ") + " "
	if r == tv.SelectedRow {
		return lipgloss.NewStyle().
			Background(tv.Theme.TableRowSelected).
			Bold(true).
			Render(line)
	}
	return line
}

func (tv *TableView) renderStatus() string {
	showing := fmt.Sprintf(" %d of %d visible rows shown, %d total", len(tv.Rows), tv.VisibleRows, tv.TotalRows)
	if tv.Status != "" {
		showing = " " + tv.Status
	}
	return lipgloss.NewStyle().
		Foreground(tv.Theme.Muted).
		Italic(true).
		Render(showing)
}

// pad truncates s to width display cells or pads it with spaces
func (tv *TableView) pad(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}
