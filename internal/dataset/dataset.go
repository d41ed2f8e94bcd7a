// Package dataset holds imported tables. Each dataset keeps its unfiltered
// snapshot in memory and mirrors it into a private in-memory SQLite database,
// which serves as the query engine for filter expressions.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rebeliceyang/listinsight/internal/models"
)

// TagsColumn is appended to every imported dataset to hold row tags
const TagsColumn = "Tags"

// positionColumn holds the snapshot position of each engine row. Column
// names are normalized so no user column can take it.
const positionColumn = "__li_pos"

// Dataset is a named, typed table with a fixed unfiltered snapshot
type Dataset struct {
	id         string
	name       string
	source     string
	columns    []models.Column
	rows       []Row
	primaryKey models.PrimaryKey
	db         *sql.DB
}

// New creates a dataset from typed rows and loads it into the query engine.
// Column names are normalized: blank names are filled in and names equal
// ignoring case get a numeric suffix, since the engine cannot tell them apart.
func New(name string, columns []models.Column, rows []Row) (*Dataset, error) {
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open query engine: %w", err)
	}
	// Every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	ds := &Dataset{
		id:         uuid.New().String(),
		name:       name,
		columns:    normalizeColumns(columns),
		rows:       rows,
		primaryKey: models.NoPrimaryKey,
		db:         db,
	}

	if err := ds.createTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return ds, nil
}

func normalizeColumns(columns []models.Column) []models.Column {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	names = normalizeHeader(names)

	out := make([]models.Column, len(columns))
	for i, c := range columns {
		out[i] = models.Column{Name: names[i], Type: c.Type}
	}
	return out
}

func (d *Dataset) createTable(ctx context.Context) error {
	defs := make([]string, len(d.columns)+1)
	names := make([]string, len(d.columns)+1)
	marks := make([]string, len(d.columns)+1)
	names[0] = QuoteIdentifier(positionColumn)
	defs[0] = names[0] + " INTEGER PRIMARY KEY"
	marks[0] = "?"
	for i, col := range d.columns {
		names[i+1] = QuoteIdentifier(col.Name)
		defs[i+1] = names[i+1] + " " + d.affinity(i)
		marks[i+1] = "?"
	}

	if _, err := d.db.ExecContext(ctx, "CREATE TABLE data ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("failed to create table for %s: %w", d.name, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO data ("+strings.Join(names, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", d.name, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(d.columns)+1)
	for i, row := range d.rows {
		args[0] = int64(i)
		for c := range d.columns {
			args[c+1] = nil
			if c < len(row) {
				args[c+1] = row[c]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d of %s: %w", i, d.name, err)
		}
	}

	return tx.Commit()
}

// affinity returns the engine column type. Numeric columns holding any
// fractional value are REAL so integral values keep rendering as floats
// ("2.0") when cast to text.
func (d *Dataset) affinity(c int) string {
	if d.columns[c].Type != models.TypeNumeric {
		return "TEXT"
	}
	for _, row := range d.rows {
		if c < len(row) {
			if _, ok := row[c].(float64); ok {
				return "REAL"
			}
		}
	}
	return "NUMERIC"
}

// ID returns the dataset identifier used by the project store
func (d *Dataset) ID() string { return d.id }

// SetID replaces the generated identifier, for datasets reopened from a project
func (d *Dataset) SetID(id string) { d.id = id }

// Name returns the dataset name
func (d *Dataset) Name() string { return d.name }

// SetName renames the dataset
func (d *Dataset) SetName(name string) { d.name = name }

// Source returns the parquet file backing the dataset, if any
func (d *Dataset) Source() string { return d.source }

// SetSource records the parquet file backing the dataset
func (d *Dataset) SetSource(path string) { d.source = path }

// Columns returns a copy of the column definitions
func (d *Dataset) Columns() []models.Column {
	return append([]models.Column(nil), d.columns...)
}

// ColumnNames returns the column names in order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of a column or -1. Like the query engine,
// it falls back to a case-insensitive match.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.columns {
		if c.Name == name {
			return i
		}
	}
	for i, c := range d.columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnType returns the declared type of a column
func (d *Dataset) ColumnType(name string) (models.ColumnType, bool) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return models.TypeText, false
	}
	return d.columns[idx].Type, true
}

// ColumnInfo describes one column of the unfiltered snapshot
type ColumnInfo struct {
	Name    string
	Type    models.ColumnType
	Storage string // int64, float64 or string
	NonNull int
}

// Info summarizes every column: declared type, storage kind and the number
// of non-null cells.
func (d *Dataset) Info() []ColumnInfo {
	info := make([]ColumnInfo, len(d.columns))
	for c, col := range d.columns {
		info[c] = ColumnInfo{Name: col.Name, Type: col.Type, Storage: "string"}
		if col.Type == models.TypeNumeric {
			info[c].Storage = "int64"
		}
		for _, row := range d.rows {
			if c >= len(row) || row[c] == nil {
				continue
			}
			info[c].NonNull++
			if _, ok := row[c].(float64); ok && col.Type == models.TypeNumeric {
				info[c].Storage = "float64"
			}
		}
	}
	return info
}

// RowCount returns the number of rows in the unfiltered snapshot
func (d *Dataset) RowCount() int { return len(d.rows) }

// Row returns a row of the unfiltered snapshot
func (d *Dataset) Row(i int) (Row, error) {
	if i < 0 || i >= len(d.rows) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRow, i)
	}
	return d.rows[i], nil
}

// Cell returns the value of a named column in row i
func (d *Dataset) Cell(i int, column string) (any, error) {
	row, err := d.Row(i)
	if err != nil {
		return nil, err
	}
	idx := d.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if idx >= len(row) {
		return nil, nil
	}
	return row[idx], nil
}

// PrimaryKey returns the primary key metadata
func (d *Dataset) PrimaryKey() models.PrimaryKey { return d.primaryKey }

// SetPrimaryKey selects the primary key column by name and returns its index.
// An empty or unknown name leaves the primary key unset and returns -1.
func (d *Dataset) SetPrimaryKey(name string) int {
	idx := d.ColumnIndex(name)
	if name == "" || idx < 0 {
		d.primaryKey = models.NoPrimaryKey
		return -1
	}
	d.primaryKey = models.PrimaryKey{Name: d.columns[idx].Name, Index: idx}
	return idx
}

// EnsureColumn appends an empty text column when name is not present. An
// existing column matching name ignoring case is adopted and declared text.
func (d *Dataset) EnsureColumn(ctx context.Context, name string) error {
	if idx := d.ColumnIndex(name); idx >= 0 {
		d.columns[idx].Type = models.TypeText
		return nil
	}
	if d.db == nil {
		return ErrClosed
	}
	if _, err := d.db.ExecContext(ctx, "ALTER TABLE data ADD COLUMN "+QuoteIdentifier(name)+" TEXT"); err != nil {
		return fmt.Errorf("failed to add column %s: %w", name, err)
	}
	d.columns = append(d.columns, models.Column{Name: name, Type: models.TypeText})
	for i := range d.rows {
		for len(d.rows[i]) < len(d.columns) {
			d.rows[i] = append(d.rows[i], nil)
		}
	}
	return nil
}

// SetCell overwrites one cell in both the snapshot and the query engine
func (d *Dataset) SetCell(ctx context.Context, i int, column string, value any) error {
	if i < 0 || i >= len(d.rows) {
		return fmt.Errorf("%w: %d", ErrInvalidRow, i)
	}
	idx := d.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if d.db == nil {
		return ErrClosed
	}

	_, err := d.db.ExecContext(ctx,
		"UPDATE data SET "+QuoteIdentifier(column)+" = ? WHERE "+QuoteIdentifier(positionColumn)+" = ?", value, int64(i))
	if err != nil {
		return fmt.Errorf("failed to update %s row %d: %w", column, i, err)
	}

	for len(d.rows[i]) <= idx {
		d.rows[i] = append(d.rows[i], nil)
	}
	d.rows[i][idx] = value
	return nil
}

// Select evaluates expr against the unfiltered snapshot and returns the
// matching row positions in ascending order.
func (d *Dataset) Select(ctx context.Context, expr string) ([]int, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	pos := QuoteIdentifier(positionColumn)
	rows, err := d.db.QueryContext(ctx, "SELECT "+pos+" FROM data WHERE ("+expr+") ORDER BY "+pos)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}
	defer func() { _ = rows.Close() }()

	var matches []int
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		matches = append(matches, int(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}

	return matches, nil
}

// All returns every row position of the unfiltered snapshot
func (d *Dataset) All() []int {
	all := make([]int, len(d.rows))
	for i := range all {
		all[i] = i
	}
	return all
}

// Close releases the query engine
func (d *Dataset) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// QuoteIdentifier quotes a column name for the query engine. Backticks are
// used because SQLite reads an unknown double-quoted name as a string.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral quotes a string literal for the query engine
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
