package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/ui/theme"
)

// InfoView shows the structure of a dataset: where it is stored and, per
// column, its type and how many cells are filled
type InfoView struct {
	Theme theme.Theme

	name    string
	source  string
	columns *TableView
}

// NewInfoView creates a new info view
func NewInfoView(th theme.Theme) *InfoView {
	return &InfoView{
		Theme:   th,
		columns: NewTableView(th),
	}
}

// SetDataset loads the structure of ds
func (iv *InfoView) SetDataset(ds *dataset.Dataset) {
	iv.name = ds.Name()
	iv.source = ds.Source()

	pk := ds.PrimaryKey()
	headers := []string{"#", "Column", "Non-Null", "Dtype", "Key"}
	info := ds.Info()
	rows := make([][]string, len(info))
	for i, col := range info {
		key := ""
		if pk.IsSet() && pk.Index == i {
			key = "PK"
		}
		rows[i] = []string{
			strconv.Itoa(i),
			col.Name,
			fmt.Sprintf("%d non-null", col.NonNull),
			col.Storage,
			key,
		}
	}

	iv.columns.SetData(headers, rows, fmt.Sprintf("%d rows, %d columns", ds.RowCount(), len(info)))
}

// View renders the dataset info
func (iv *InfoView) View() string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(iv.Theme.Info).Render(iv.name))
	b.WriteString("\n")

	source := iv.source
	if source == "" {
		source = "(not saved)"
	}
	b.WriteString(lipgloss.NewStyle().Foreground(iv.Theme.Muted).Render("parquet: " + source))
	b.WriteString("\n")

	b.WriteString(iv.columns.View())
	return b.String()
}
