package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/models"
)

// Table is a set of visible rows over a dataset
type Table interface {
	Dataset() *dataset.Dataset
	Visible() []int
	Rows() []dataset.Row
}

// Export writes the visible rows of t to path in the format named by its
// extension: .csv, .json or .parquet
func Export(t Table, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ToCSV(t, path)
	case ".json":
		return ToJSON(t, path)
	case ".parquet":
		return ToParquet(t, path)
	default:
		return fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
}

// ToCSV exports the visible rows to a CSV file
func ToCSV(t Table, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)

	header := t.Dataset().ColumnNames()
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range t.Rows() {
		record := make([]string, len(header))
		for i := range record {
			if i < len(row) {
				record[i] = dataset.FormatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ToJSON exports the visible rows as an array of objects keyed by column
func ToJSON(t Table, path string) error {
	header := t.Dataset().ColumnNames()
	objects := make([]map[string]any, 0, t.Dataset().RowCount())

	for _, row := range t.Rows() {
		obj := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				obj[name] = row[i]
			} else {
				obj[name] = nil
			}
		}
		objects = append(objects, obj)
	}

	// Marshal to JSON with pretty printing
	data, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}

// ToParquet exports the visible rows to a parquet file
func ToParquet(t Table, path string) error {
	return dataset.WriteParquetRows(t.Dataset(), t.Visible(), path)
}

// ShortlistToCSV exports shortlist items to a CSV file
func ShortlistToCSV(items []models.ShortlistItem, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)

	header := []string{"Title", "Body", "Tags", "Finding"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, item := range items {
		row := []string{
			item.Title,
			item.Body,
			strings.Join(item.Tags, ", "),
			fmt.Sprintf("%t", item.Finding),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
